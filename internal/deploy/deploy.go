// Package deploy uploads the function archive and creates or updates the
// CloudFormation stack.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/bundle"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

// maxTemplateBody is the largest template CreateStack accepts inline.
const maxTemplateBody = 51200

// ErrStackFailed is returned when the stack settles in a failed state.
var ErrStackFailed = errors.New("stack operation failed")

// errStillRunning marks a stack that has not settled yet.
var errStillRunning = errors.New("stack operation in progress")

// S3API is the subset of the S3 client the deployer uses.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CloudFormationAPI is the subset of the CloudFormation client the deployer uses.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// STSAPI is the subset of the STS client the deployer uses.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Deployer deploys the stack.
type Deployer struct {
	S3     S3API
	CFN    CloudFormationAPI
	STS    STSAPI
	Logger *logrus.Logger

	// PollInterval and MaxPolls bound the wait for a terminal status.
	PollInterval time.Duration
	MaxPolls     uint
}

// New creates a deployer from an AWS config.
func New(cfg aws.Config, logger *logrus.Logger) *Deployer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Deployer{
		S3:           s3.NewFromConfig(cfg),
		CFN:          cloudformation.NewFromConfig(cfg),
		STS:          sts.NewFromConfig(cfg),
		Logger:       logger,
		PollInterval: 10 * time.Second,
		MaxPolls:     180,
	}
}

// Input describes one deployment.
type Input struct {
	StackName string
	Template  *hellostack.Template
	Artifact  bundle.Artifact
	Bucket    string
	Prefix    string
}

// Result reports a finished deployment.
type Result struct {
	Account   string
	StackID   string
	Status    string
	Created   bool
	NoChanges bool
	Uploaded  bool
	CodeKey   string
	Outputs   map[string]string
}

// Identity returns the account and ARN of the caller.
func (d *Deployer) Identity(ctx context.Context) (account, arn string, err error) {
	out, err := d.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("resolving caller identity: %w", err)
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}

// Deploy uploads the archive and applies the template. A stack that
// cannot be updated is refused before anything is uploaded.
func (d *Deployer) Deploy(ctx context.Context, in Input) (*Result, error) {
	if in.StackName == "" || in.Bucket == "" || in.Template == nil {
		return nil, errors.New("stack name, bucket and template are required")
	}
	res := &Result{CodeKey: in.Artifact.Key(in.Prefix)}

	var existing *cfntypes.Stack
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		account, _, err := d.Identity(gctx)
		res.Account = account
		return err
	})
	g.Go(func() error {
		stack, err := d.describe(gctx, in.StackName)
		existing = stack
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if existing != nil && existing.StackStatus == cfntypes.StackStatusRollbackComplete {
		return nil, fmt.Errorf("%w: %s is %s and must be deleted before it can be deployed",
			ErrStackFailed, in.StackName, existing.StackStatus)
	}

	uploaded, err := d.upload(ctx, in.Bucket, res.CodeKey, in.Artifact)
	if err != nil {
		return nil, err
	}
	res.Uploaded = uploaded

	body, url, err := d.templateSource(ctx, in)
	if err != nil {
		return nil, err
	}
	params := []cfntypes.Parameter{
		{ParameterKey: aws.String(infra.CodeBucketParameter), ParameterValue: aws.String(in.Bucket)},
		{ParameterKey: aws.String(infra.CodeKeyParameter), ParameterValue: aws.String(res.CodeKey)},
	}
	capabilities := []cfntypes.Capability{cfntypes.CapabilityCapabilityIam}

	log := d.Logger.WithFields(logrus.Fields{"stack": in.StackName, "account": res.Account})
	switch {
	case existing == nil:
		log.Info("creating stack")
		out, err := d.CFN.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(in.StackName),
			TemplateBody: body,
			TemplateURL:  url,
			Parameters:   params,
			Capabilities: capabilities,
			OnFailure:    cfntypes.OnFailureRollback,
		})
		if err != nil {
			return nil, fmt.Errorf("creating stack %s: %w", in.StackName, err)
		}
		res.Created = true
		res.StackID = aws.ToString(out.StackId)

	default:
		log.Info("updating stack")
		out, err := d.CFN.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(in.StackName),
			TemplateBody: body,
			TemplateURL:  url,
			Parameters:   params,
			Capabilities: capabilities,
		})
		if err != nil {
			if !isNoUpdates(err) {
				return nil, fmt.Errorf("updating stack %s: %w", in.StackName, err)
			}
			log.Info("stack is up to date")
			res.NoChanges = true
			res.StackID = aws.ToString(existing.StackId)
			res.Status = string(existing.StackStatus)
			res.Outputs = outputs(existing)
			return res, nil
		}
		res.StackID = aws.ToString(out.StackId)
	}

	stack, err := d.Wait(ctx, in.StackName)
	if stack != nil {
		res.Status = string(stack.StackStatus)
		res.Outputs = outputs(stack)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// upload puts the archive unless an object with its key already exists.
func (d *Deployer) upload(ctx context.Context, bucket, key string, a bundle.Artifact) (bool, error) {
	_, err := d.S3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		d.Logger.WithField("key", key).Debug("archive already uploaded")
		return false, nil
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("checking s3://%s/%s: %w", bucket, key, err)
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return false, err
	}
	_, err = d.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return false, fmt.Errorf("uploading s3://%s/%s: %w", bucket, key, err)
	}
	d.Logger.WithFields(logrus.Fields{
		"key":  key,
		"size": humanize.Bytes(uint64(len(data))),
	}).Info("uploaded archive")
	return true, nil
}

// templateSource returns the template inline, or uploads it when it is
// too large to pass inline.
func (d *Deployer) templateSource(ctx context.Context, in Input) (body, url *string, err error) {
	data, err := template.ToJSON(in.Template)
	if err != nil {
		return nil, nil, err
	}
	if len(data) <= maxTemplateBody {
		return aws.String(string(data)), nil, nil
	}

	key := strings.TrimSuffix(in.Prefix, "/") + "/" + in.StackName + ".template.json"
	key = strings.TrimPrefix(key, "/")
	_, err = d.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("uploading template: %w", err)
	}
	return nil, aws.String(fmt.Sprintf("https://%s.s3.amazonaws.com/%s", in.Bucket, key)), nil
}

// describe returns the stack, or nil when it does not exist.
func (d *Deployer) describe(ctx context.Context, name string) (*cfntypes.Stack, error) {
	out, err := d.CFN.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		if isStackMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("describing stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}
	return &out.Stacks[0], nil
}

// Wait polls the stack until it reaches a terminal status.
func (d *Deployer) Wait(ctx context.Context, name string) (*cfntypes.Stack, error) {
	var stack *cfntypes.Stack
	err := retry.Do(
		func() error {
			s, err := d.describe(ctx, name)
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("stack %s disappeared", name)
			}
			stack = s
			status := string(s.StackStatus)
			d.Logger.WithFields(logrus.Fields{"stack": name, "status": status}).Debug("polled stack")

			switch {
			case strings.HasSuffix(status, "_IN_PROGRESS"):
				return errStillRunning
			case status == string(cfntypes.StackStatusCreateComplete),
				status == string(cfntypes.StackStatusUpdateComplete),
				status == string(cfntypes.StackStatusImportComplete):
				return nil
			default:
				reason := aws.ToString(s.StackStatusReason)
				return fmt.Errorf("%w: %s %s %s", ErrStackFailed, name, status, reason)
			}
		},
		retry.Context(ctx),
		retry.Attempts(d.maxPolls()),
		retry.Delay(d.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errStillRunning) }),
	)
	if errors.Is(err, errStillRunning) {
		return stack, fmt.Errorf("timed out waiting for stack %s", name)
	}
	return stack, err
}

func (d *Deployer) maxPolls() uint {
	if d.MaxPolls == 0 {
		return 180
	}
	return d.MaxPolls
}

// Outputs returns the outputs of a deployed stack.
func (d *Deployer) Outputs(ctx context.Context, name string) (map[string]string, error) {
	stack, err := d.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, fmt.Errorf("stack %s does not exist", name)
	}
	return outputs(stack), nil
}

func outputs(stack *cfntypes.Stack) map[string]string {
	out := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}

func apiError(err error) (smithy.APIError, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isStackMissing(err error) bool {
	apiErr, ok := apiError(err)
	return ok && apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func isNoUpdates(err error) bool {
	apiErr, ok := apiError(err)
	return ok && apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}

func isNotFound(err error) bool {
	apiErr, ok := apiError(err)
	if !ok {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}
