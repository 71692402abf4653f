package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/graph"
)

// cdkRenderer emits TypeScript CDK constructs.
type cdkRenderer struct{}

func (r *cdkRenderer) Dialect() Dialect { return DialectCDK }

type cdkStackRef struct {
	Class string
	File  string
}

func (r *cdkRenderer) RenderStack(specs []*compile.ResourceSpec) []File {
	return []File{
		{Path: "cdk/bin/app.ts", Content: cdkApp([]cdkStackRef{{Class: "AppStack", File: "app-stack"}})},
		{Path: "cdk/lib/app-stack.ts", Content: renderCDKStack("AppStack", specs, nil)},
	}
}

func (r *cdkRenderer) RenderPartitioned(groups []compile.Group) []File {
	var refs []cdkStackRef
	files := make([]File, 0, len(groups)+1)
	for _, grp := range groups {
		class := pascalCase(string(grp.Category)) + "Stack"
		base := string(grp.Category) + "-stack"
		refs = append(refs, cdkStackRef{Class: class, File: base})
		files = append(files, File{
			Path:    "cdk/lib/" + base + ".ts",
			Content: renderCDKStack(class, grp.Specs, groups),
		})
	}
	return append([]File{{Path: "cdk/bin/app.ts", Content: cdkApp(refs)}}, files...)
}

func cdkApp(refs []cdkStackRef) string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env node\nimport * as cdk from 'aws-cdk-lib';\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "import { %s } from '../lib/%s';\n", ref.Class, ref.File)
	}
	b.WriteString("\nconst app = new cdk.App();\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "new %s(app, '%s');\n", ref.Class, ref.Class)
	}
	return b.String()
}

// cdkStack accumulates one stack file: imports grow as constructs and
// grants are emitted.
type cdkStack struct {
	imports map[string]string // alias -> module path
	local   map[string]*compile.ResourceSpec
	all     map[string]*compile.ResourceSpec
	groups  []compile.Group // nil when rendering a single stack
	refs    map[string]bool // external refs already declared
	body    []string
}

var cdkModules = map[string]string{
	"lambda":     "aws-cdk-lib/aws-lambda",
	"sources":    "aws-cdk-lib/aws-lambda-event-sources",
	"apigateway": "aws-cdk-lib/aws-apigateway",
	"dynamodb":   "aws-cdk-lib/aws-dynamodb",
	"s3":         "aws-cdk-lib/aws-s3",
	"s3n":        "aws-cdk-lib/aws-s3-notifications",
	"sqs":        "aws-cdk-lib/aws-sqs",
	"sns":        "aws-cdk-lib/aws-sns",
	"subs":       "aws-cdk-lib/aws-sns-subscriptions",
	"events":     "aws-cdk-lib/aws-events",
	"targets":    "aws-cdk-lib/aws-events-targets",
	"sfn":        "aws-cdk-lib/aws-stepfunctions",
	"kinesis":    "aws-cdk-lib/aws-kinesis",
	"cognito":    "aws-cdk-lib/aws-cognito",
	"cloudfront": "aws-cdk-lib/aws-cloudfront",
	"origins":    "aws-cdk-lib/aws-cloudfront-origins",
	"kms":        "aws-cdk-lib/aws-kms",
}

func (w *cdkStack) use(alias string) string {
	w.imports[alias] = cdkModules[alias]
	return alias
}

func (w *cdkStack) line(format string, args ...any) {
	w.body = append(w.body, fmt.Sprintf(format, args...))
}

func renderCDKStack(className string, specs []*compile.ResourceSpec, groups []compile.Group) string {
	w := &cdkStack{
		imports: map[string]string{},
		local:   specByName(specs),
		all:     specByName(specs),
		groups:  groups,
		refs:    map[string]bool{},
	}
	if groups != nil {
		w.all = map[string]*compile.ResourceSpec{}
		for _, grp := range groups {
			for _, s := range grp.Specs {
				w.all[s.Name] = s
			}
		}
	}

	for _, s := range specs {
		w.emitConstruct(s)
	}
	for _, s := range specs {
		w.emitGrants(s)
	}
	if groups != nil {
		w.emitExports(specs)
	}

	aliases := make([]string, 0, len(w.imports))
	for a := range w.imports {
		aliases = append(aliases, a)
	}
	sort.Slice(aliases, func(i, j int) bool { return w.imports[aliases[i]] < w.imports[aliases[j]] })

	var b strings.Builder
	b.WriteString("import * as cdk from 'aws-cdk-lib';\nimport { Construct } from 'constructs';\n")
	for _, a := range aliases {
		fmt.Fprintf(&b, "import * as %s from '%s';\n", a, w.imports[a])
	}
	fmt.Fprintf(&b, "\nexport class %s extends cdk.Stack {\n", className)
	b.WriteString("  constructor(scope: Construct, id: string, props?: cdk.StackProps) {\n")
	b.WriteString("    super(scope, id, props);\n\n")
	for _, line := range w.body {
		if line == "" {
			b.WriteString("\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}
	b.WriteString("  }\n}\n")
	return b.String()
}

// ref returns a TypeScript expression for a grant target, declaring an
// imported cross-stack reference the first time an external resource is
// used.
func (w *cdkStack) ref(name string) string {
	if _, ok := w.local[name]; ok {
		return camelCase(name)
	}
	v := camelCase(name)
	if w.refs[name] {
		return v
	}
	w.refs[name] = true
	spec := w.all[name]
	imp := fmt.Sprintf("cdk.Fn.importValue('%s-arn')", name)
	id := pascalCase(name) + "Ref"
	var expr string
	switch spec.Kind {
	case graph.KindTable:
		expr = fmt.Sprintf("%s.Table.fromTableArn(this, '%s', %s)", w.use("dynamodb"), id, imp)
	case graph.KindStorage, graph.KindFrontend:
		expr = fmt.Sprintf("%s.Bucket.fromBucketArn(this, '%s', %s)", w.use("s3"), id, imp)
	case graph.KindQueue:
		expr = fmt.Sprintf("%s.Queue.fromQueueArn(this, '%s', %s)", w.use("sqs"), id, imp)
	case graph.KindFunction:
		expr = fmt.Sprintf("%s.Function.fromFunctionArn(this, '%s', %s)", w.use("lambda"), id, imp)
	case graph.KindTopic:
		expr = fmt.Sprintf("%s.Topic.fromTopicArn(this, '%s', %s)", w.use("sns"), id, imp)
	case graph.KindEventBus:
		expr = fmt.Sprintf("%s.EventBus.fromEventBusArn(this, '%s', %s)", w.use("events"), id, imp)
	case graph.KindStream:
		expr = fmt.Sprintf("%s.Stream.fromStreamArn(this, '%s', %s)", w.use("kinesis"), id, imp)
	case graph.KindWorkflow:
		expr = fmt.Sprintf("%s.StateMachine.fromStateMachineArn(this, '%s', %s)", w.use("sfn"), id, imp)
	case graph.KindIdentity:
		expr = fmt.Sprintf("%s.UserPool.fromUserPoolArn(this, '%s', %s)", w.use("cognito"), id, imp)
	default:
		expr = imp
	}
	w.line("const %s = %s;", v, expr)
	return v
}

func (w *cdkStack) emitConstruct(s *compile.ResourceSpec) {
	v := camelCase(s.Name)
	id := pascalCase(s.Name)

	switch s.Kind {
	case graph.KindFunction:
		w.use("lambda")
		w.use("kms")
		w.line("const %s = new lambda.Function(this, '%s', {", v, id)
		w.line("  runtime: lambda.Runtime.NODEJS_20_X,")
		w.line("  handler: '%s',", propString(s, "handler", "index.handler"))
		w.line("  code: lambda.Code.fromAsset('lambda/%s'),", s.Name)
		w.line("  timeout: cdk.Duration.seconds(%d),", propInt(s, "timeout_seconds", 30))
		w.line("  memorySize: %d,", propInt(s, "memory_mb", 256))
		w.line("  tracing: lambda.Tracing.ACTIVE,")
		w.line("  environmentEncryption: new kms.Key(this, '%sEnvKey', { enableKeyRotation: true }),", id)
		w.line("});")
	case graph.KindTable:
		w.use("dynamodb")
		w.line("const %s = new dynamodb.Table(this, '%s', {", v, id)
		w.line("  partitionKey: { name: '%s', type: dynamodb.AttributeType.STRING },", propString(s, "partition_key", "id"))
		w.line("  billingMode: dynamodb.BillingMode.PAY_PER_REQUEST,")
		w.line("  encryption: dynamodb.TableEncryption.AWS_MANAGED,")
		w.line("  pointInTimeRecovery: true,")
		w.line("});")
	case graph.KindStorage, graph.KindFrontend:
		w.use("s3")
		w.line("const %s = new s3.Bucket(this, '%s', {", v, id)
		w.line("  encryption: s3.BucketEncryption.S3_MANAGED,")
		w.line("  blockPublicAccess: s3.BlockPublicAccess.BLOCK_ALL,")
		w.line("  enforceSSL: true,")
		w.line("  versioned: true,")
		w.line("});")
	case graph.KindQueue:
		w.use("sqs")
		w.line("const %s = new sqs.Queue(this, '%s', {", v, id)
		w.line("  encryption: sqs.QueueEncryption.SQS_MANAGED,")
		if dlq := propString(s, "dead_letter_target", ""); dlq != "" {
			w.line("  deadLetterQueue: {")
			w.line("    queue: %s,", camelCase(dlq))
			w.line("    maxReceiveCount: %d,", propInt(s, "max_receive_count", 3))
			w.line("  },")
		}
		w.line("});")
	case graph.KindAPIGateway:
		w.use("apigateway")
		w.line("const %s = new apigateway.RestApi(this, '%s', {", v, id)
		w.line("  restApiName: '%s',", s.Name)
		w.line("  deployOptions: {")
		w.line("    stageName: '%s',", propString(s, "stage", "prod"))
		w.line("    tracingEnabled: true,")
		w.line("    loggingLevel: apigateway.MethodLoggingLevel.INFO,")
		w.line("  },")
		w.line("});")
		if s.Authorizer != "" {
			w.use("apigateway")
			w.line("const %sAuthorizer = new apigateway.CognitoUserPoolsAuthorizer(this, '%sAuthorizer', {", v, id)
			w.line("  cognitoUserPools: [%s],", w.ref(s.Authorizer))
			w.line("});")
		}
	case graph.KindIdentity:
		w.use("cognito")
		w.line("const %s = new cognito.UserPool(this, '%s', {", v, id)
		w.line("  selfSignUpEnabled: %t,", propBool(s, "self_sign_up"))
		w.line("  signInAliases: { email: true },")
		w.line("  passwordPolicy: {")
		w.line("    minLength: %d,", propInt(s, "password_min_length", 12))
		w.line("    requireLowercase: true,")
		w.line("    requireUppercase: true,")
		w.line("    requireDigits: true,")
		w.line("    requireSymbols: true,")
		w.line("  },")
		if propString(s, "multi_factor", "optional") == "required" {
			w.line("  mfa: cognito.Mfa.REQUIRED,")
		} else {
			w.line("  mfa: cognito.Mfa.OPTIONAL,")
		}
		w.line("  advancedSecurityMode: cognito.AdvancedSecurityMode.ENFORCED,")
		w.line("});")
	case graph.KindCDN:
		w.use("cloudfront")
		w.use("origins")
		origin := ""
		for _, gr := range s.Grants {
			if gr.Access == compile.AccessOriginRead {
				origin = fmt.Sprintf("new origins.S3Origin(%s)", w.ref(gr.Target))
				break
			}
		}
		if origin == "" {
			// Origin domain is a deployment-time context value, never a
			// hardcoded hostname.
			origin = "new origins.HttpOrigin(this.node.tryGetContext('originDomain'))"
		}
		w.line("const %s = new cloudfront.Distribution(this, '%s', {", v, id)
		w.line("  defaultBehavior: {")
		w.line("    origin: %s,", origin)
		w.line("    viewerProtocolPolicy: cloudfront.ViewerProtocolPolicy.REDIRECT_TO_HTTPS,")
		w.line("  },")
		w.line("  minimumProtocolVersion: cloudfront.SecurityPolicyProtocol.TLS_V1_2_2021,")
		w.line("});")
	case graph.KindEventBus:
		w.use("events")
		w.line("const %s = new events.EventBus(this, '%s', {", v, id)
		w.line("  eventBusName: '%s',", s.Name)
		w.line("});")
	case graph.KindTopic:
		w.use("sns")
		w.use("kms")
		w.line("const %s = new sns.Topic(this, '%s', {", v, id)
		w.line("  masterKey: kms.Alias.fromAliasName(this, '%sKey', 'alias/aws/sns'),", id)
		w.line("});")
	case graph.KindWorkflow:
		w.use("sfn")
		w.line("const %s = new sfn.StateMachine(this, '%s', {", v, id)
		w.line("  definitionBody: sfn.DefinitionBody.fromChainable(new sfn.Pass(this, '%sPass')),", id)
		w.line("  tracingEnabled: true,")
		w.line("});")
	case graph.KindStream:
		w.use("kinesis")
		w.line("const %s = new kinesis.Stream(this, '%s', {", v, id)
		w.line("  encryption: kinesis.StreamEncryption.MANAGED,")
		w.line("  retentionPeriod: cdk.Duration.hours(%d),", propInt(s, "retention_hours", 24))
		w.line("});")
	}
	w.line("")
}

func (w *cdkStack) emitGrants(s *compile.ResourceSpec) {
	v := camelCase(s.Name)
	for _, gr := range s.Grants {
		tgt := w.ref(gr.Target)
		switch gr.Access {
		case compile.AccessReadWriteData:
			w.line("%s.grantReadWriteData(%s);", tgt, v)
		case compile.AccessReadWriteObjects:
			w.line("%s.grantReadWrite(%s);", tgt, v)
		case compile.AccessSendMessages:
			w.line("%s.grantSendMessages(%s);", tgt, v)
		case compile.AccessPublish:
			w.line("%s.grantPublish(%s);", tgt, v)
		case compile.AccessPutEvents:
			w.line("%s.grantPutEventsTo(%s);", tgt, v)
		case compile.AccessPutRecords:
			w.line("%s.grantWrite(%s);", tgt, v)
		case compile.AccessStartExecution:
			w.line("%s.grantStartExecution(%s);", tgt, v)
		case compile.AccessInvoke:
			if s.Kind == graph.KindAPIGateway {
				w.use("apigateway")
				opts := ""
				if s.Authorizer != "" {
					opts = fmt.Sprintf(", { authorizationType: apigateway.AuthorizationType.COGNITO, authorizer: %sAuthorizer }", v)
				}
				w.line("%s.root.addResource('%s').addMethod('ANY', new apigateway.LambdaIntegration(%s)%s);", v, gr.Target, tgt, opts)
			} else {
				w.line("%s.grantInvoke(%s);", tgt, v)
			}
		case compile.AccessConsumeMessages:
			w.use("sources")
			if s.Kind == graph.KindStream {
				w.use("lambda")
				w.line("%s.addEventSource(new sources.KinesisEventSource(%s, { startingPosition: lambda.StartingPosition.LATEST }));", tgt, v)
			} else {
				w.line("%s.addEventSource(new sources.SqsEventSource(%s));", tgt, v)
			}
		case compile.AccessRuleTarget:
			w.use("events")
			w.use("targets")
			w.line("new events.Rule(this, '%sTo%sRule', {", pascalCase(s.Name), pascalCase(gr.Target))
			w.line("  eventBus: %s,", v)
			w.line("  eventPattern: { account: [cdk.Stack.of(this).account] },")
			w.line("  targets: [new targets.LambdaFunction(%s)],", tgt)
			w.line("});")
		case compile.AccessSubscribe:
			w.use("subs")
			if target, ok := w.all[gr.Target]; ok && target.Kind == graph.KindQueue {
				w.line("%s.addSubscription(new subs.SqsSubscription(%s));", v, tgt)
			} else {
				w.line("%s.addSubscription(new subs.LambdaSubscription(%s));", v, tgt)
			}
		case compile.AccessNotify:
			w.use("s3")
			w.use("s3n")
			w.line("%s.addEventNotification(s3.EventType.OBJECT_CREATED, new s3n.LambdaDestination(%s));", v, tgt)
		case compile.AccessOriginRead:
			// Wired as the distribution origin in emitConstruct.
		}
	}
}

// emitExports publishes the ARNs other groups import.
func (w *cdkStack) emitExports(specs []*compile.ResourceSpec) {
	needed := crossGroupTargets(w.groups)
	emitted := false
	for _, s := range specs {
		if !needed[s.Name] {
			continue
		}
		attr, ok := cdkArnAttr[s.Kind]
		if !ok {
			continue
		}
		w.line("new cdk.CfnOutput(this, '%sArn', { value: %s.%s, exportName: '%s-arn' });",
			pascalCase(s.Name), camelCase(s.Name), attr, s.Name)
		emitted = true
	}
	if emitted {
		w.line("")
	}
}

var cdkArnAttr = map[graph.Kind]string{
	graph.KindTable:    "tableArn",
	graph.KindStorage:  "bucketArn",
	graph.KindFrontend: "bucketArn",
	graph.KindQueue:    "queueArn",
	graph.KindFunction: "functionArn",
	graph.KindTopic:    "topicArn",
	graph.KindEventBus: "eventBusArn",
	graph.KindStream:   "streamArn",
	graph.KindWorkflow: "stateMachineArn",
	graph.KindIdentity: "userPoolArn",
}

// crossGroupTargets returns the names referenced from a group other than
// their own: grant targets, authorizers, and queue dead-letter pairs are
// the reference kinds that can cross.
func crossGroupTargets(groups []compile.Group) map[string]bool {
	home := map[string]compile.Category{}
	for _, grp := range groups {
		for _, s := range grp.Specs {
			home[s.Name] = grp.Category
		}
	}
	needed := map[string]bool{}
	for _, grp := range groups {
		for _, s := range grp.Specs {
			for _, gr := range s.Grants {
				if home[gr.Target] != grp.Category {
					needed[gr.Target] = true
				}
			}
			if s.Authorizer != "" && home[s.Authorizer] != grp.Category {
				needed[s.Authorizer] = true
			}
		}
	}
	return needed
}
