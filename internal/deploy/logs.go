package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// LogsAPI is the subset of the CloudWatch Logs client FetchLogs uses.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// LogEvent is one line written by the function.
type LogEvent struct {
	Time    time.Time
	Stream  string
	Message string
}

// LogGroup returns the log group Lambda writes a function's output to.
func LogGroup(functionName string) string {
	return "/aws/lambda/" + functionName
}

// FetchLogs returns the events of functionName logged since the given time,
// optionally restricted by a CloudWatch filter pattern. At most limit
// events are returned when limit is positive.
func FetchLogs(ctx context.Context, client LogsAPI, functionName string, since time.Time, pattern string, limit int) ([]LogEvent, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(LogGroup(functionName)),
		StartTime:    aws.Int64(since.UnixMilli()),
	}
	if pattern != "" {
		input.FilterPattern = aws.String(pattern)
	}

	var events []LogEvent
	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", LogGroup(functionName), err)
		}
		for _, e := range page.Events {
			events = append(events, LogEvent{
				Time:    time.UnixMilli(aws.ToInt64(e.Timestamp)),
				Stream:  aws.ToString(e.LogStreamName),
				Message: aws.ToString(e.Message),
			})
			if limit > 0 && len(events) >= limit {
				return events, nil
			}
		}
	}
	return events, nil
}
