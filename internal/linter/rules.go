package linter

import (
	"go/ast"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

// Rule is the interface for lint rules.
type Rule interface {
	ID() string
	Description() string
	Check(file *ast.File, fset *token.FileSet) []Issue
}

// AllRules returns every rule in ID order.
func AllRules() []Rule {
	return []Rule{
		HardcodedPseudoParameter{},
		MapShouldBeIntrinsic{},
		HardcodedPolicyVersion{},
		DuplicateLogicalID{},
		LiteralLogicalID{},
	}
}

func newIssue(r Rule, fset *token.FileSet, pos token.Pos, severity Severity, message, suggestion string) Issue {
	p := fset.Position(pos)
	return Issue{
		Rule:       r.ID(),
		Message:    message,
		Suggestion: suggestion,
		File:       p.Filename,
		Line:       p.Line,
		Column:     p.Column,
		Severity:   severity,
	}
}

func stringLit(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	return strings.Trim(lit.Value, "`\""), true
}

// HardcodedPseudoParameter detects hardcoded AWS pseudo-parameter strings.
//
// Detects: "AWS::Region", "AWS::AccountId", "AWS::StackName"
// Suggests: intrinsics.AWS_REGION, intrinsics.AWS_ACCOUNT_ID, etc.
type HardcodedPseudoParameter struct{}

func (r HardcodedPseudoParameter) ID() string { return "HS001" }
func (r HardcodedPseudoParameter) Description() string {
	return "Use pseudo-parameter variables instead of hardcoded strings"
}

var pseudoParams = map[string]string{
	"AWS::Region":    "AWS_REGION",
	"AWS::AccountId": "AWS_ACCOUNT_ID",
	"AWS::StackName": "AWS_STACK_NAME",
	"AWS::Partition": "AWS_PARTITION",
	"AWS::URLSuffix": "AWS_URL_SUFFIX",
}

func (r HardcodedPseudoParameter) Check(file *ast.File, fset *token.FileSet) []Issue {
	var issues []Issue

	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok {
			return true
		}
		value, ok := stringLit(lit)
		if !ok {
			return true
		}

		if constant, found := pseudoParams[value]; found {
			issues = append(issues, newIssue(r, fset, lit.Pos(), SeverityWarning,
				"Use "+constant+" instead of \""+value+"\"", constant))
		}
		return true
	})

	return issues
}

// MapShouldBeIntrinsic detects map[string]any patterns that should use intrinsic types.
//
// Detects: map[string]any{"Ref": "..."}, map[string]any{"Fn::Sub": "..."}
// Suggests: intrinsics.Ref{...}, intrinsics.Sub{...}
type MapShouldBeIntrinsic struct{}

func (r MapShouldBeIntrinsic) ID() string { return "HS002" }
func (r MapShouldBeIntrinsic) Description() string {
	return "Use intrinsic types instead of raw map[string]any"
}

var intrinsicKeys = map[string]string{
	"Ref":        "Ref",
	"Fn::Sub":    "Sub",
	"Fn::Join":   "Join",
	"Fn::Select": "Select",
	"Fn::GetAZs": "GetAZs",
	"Fn::GetAtt": "GetAtt",
	"Fn::Cidr":   "Cidr",
}

func (r MapShouldBeIntrinsic) Check(file *ast.File, fset *token.FileSet) []Issue {
	var issues []Issue

	ast.Inspect(file, func(n ast.Node) bool {
		comp, ok := n.(*ast.CompositeLit)
		if !ok || !isMapStringAny(comp.Type) || len(comp.Elts) != 1 {
			return true
		}

		kv, ok := comp.Elts[0].(*ast.KeyValueExpr)
		if !ok {
			return true
		}
		key, ok := stringLit(kv.Key)
		if !ok {
			return true
		}

		if typeName, found := intrinsicKeys[key]; found {
			issues = append(issues, newIssue(r, fset, comp.Pos(), SeverityWarning,
				"Use intrinsics."+typeName+"{...} instead of map[string]any{\""+key+"\": ...}",
				typeName+"{...}"))
		}
		return true
	})

	return issues
}

// isMapStringAny matches map[string]any, map[string]interface{} and the
// intrinsics.Json alias.
func isMapStringAny(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.MapType:
		key, ok := t.Key.(*ast.Ident)
		if !ok || key.Name != "string" {
			return false
		}
		switch v := t.Value.(type) {
		case *ast.Ident:
			return v.Name == "any"
		case *ast.InterfaceType:
			return v.Methods == nil || len(v.Methods.List) == 0
		}
	case *ast.Ident:
		return t.Name == "Json"
	case *ast.SelectorExpr:
		return t.Sel.Name == "Json"
	}
	return false
}

// HardcodedPolicyVersion detects hardcoded IAM policy versions.
type HardcodedPolicyVersion struct{}

func (r HardcodedPolicyVersion) ID() string { return "HS003" }
func (r HardcodedPolicyVersion) Description() string {
	return "Use NewPolicyDocument instead of a hardcoded policy version"
}

var policyVersionPattern = regexp.MustCompile(`^20\d{2}-\d{2}-\d{2}$`)

func (r HardcodedPolicyVersion) Check(file *ast.File, fset *token.FileSet) []Issue {
	var issues []Issue

	ast.Inspect(file, func(n ast.Node) bool {
		kv, ok := n.(*ast.KeyValueExpr)
		if !ok {
			return true
		}

		var key string
		switch k := kv.Key.(type) {
		case *ast.Ident:
			key = k.Name
		case *ast.BasicLit:
			key, _ = stringLit(k)
		}
		if key != "Version" {
			return true
		}

		value, ok := stringLit(kv.Value)
		if ok && policyVersionPattern.MatchString(value) {
			issues = append(issues, newIssue(r, fset, kv.Value.Pos(), SeverityInfo,
				"Policy version \""+value+"\" is set by NewPolicyDocument", "NewPolicyDocument(...)"))
		}
		return true
	})

	return issues
}

// builderMethods are the template builder calls whose first argument is a
// logical ID.
var builderMethods = map[string]bool{
	"Add":          true,
	"AddParameter": true,
	"AddOutput":    true,
}

// logicalIDArgs calls fn with the first argument of every builder call.
func logicalIDArgs(file *ast.File, fn func(method string, arg ast.Expr)) {
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) < 2 {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !builderMethods[sel.Sel.Name] {
			return true
		}
		fn(sel.Sel.Name, call.Args[0])
		return true
	})
}

// DuplicateLogicalID detects a literal or exported constant passed to the
// same builder method twice in one file. The second declaration would fail
// at synthesis.
type DuplicateLogicalID struct{}

func (r DuplicateLogicalID) ID() string { return "HS004" }
func (r DuplicateLogicalID) Description() string {
	return "A logical ID is declared twice in one file"
}

func (r DuplicateLogicalID) Check(file *ast.File, fset *token.FileSet) []Issue {
	var issues []Issue
	seen := make(map[string]token.Pos)

	logicalIDArgs(file, func(method string, arg ast.Expr) {
		var name string
		switch a := arg.(type) {
		case *ast.BasicLit:
			name, _ = stringLit(a)
		case *ast.Ident:
			if !a.IsExported() {
				return
			}
			name = a.Name
		default:
			return
		}

		key := method + "\x00" + name
		if first, ok := seen[key]; ok {
			issues = append(issues, newIssue(r, fset, arg.Pos(), SeverityError,
				name+" already declared at line "+strconv.Itoa(fset.Position(first).Line), ""))
			return
		}
		seen[key] = arg.Pos()
	})

	return issues
}

// LiteralLogicalID detects string literals passed as logical IDs. Other
// packages look resources up by ID, so IDs live in named constants.
type LiteralLogicalID struct{}

func (r LiteralLogicalID) ID() string { return "HS005" }
func (r LiteralLogicalID) Description() string {
	return "Declare logical IDs as named constants"
}

func (r LiteralLogicalID) Check(file *ast.File, fset *token.FileSet) []Issue {
	var issues []Issue

	logicalIDArgs(file, func(method string, arg ast.Expr) {
		if name, ok := stringLit(arg); ok {
			issues = append(issues, newIssue(r, fset, arg.Pos(), SeverityInfo,
				"Logical ID \""+name+"\" should be a named constant", name+"ID"))
		}
	})

	return issues
}
