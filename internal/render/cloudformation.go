package render

import (
	"fmt"
	"strings"

	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/graph"
)

// cloudFormationRenderer emits SAM templates. Grants become inline IAM
// statements so local and imported resources are handled the same way,
// and event wiring uses SAM event sources where the target function is
// local to the template.
type cloudFormationRenderer struct{}

func (r *cloudFormationRenderer) Dialect() Dialect { return DialectCloudFormation }

func (r *cloudFormationRenderer) RenderStack(specs []*compile.ResourceSpec) []File {
	return []File{{
		Path:    "cloudformation/template.yaml",
		Content: renderCFNTemplate("application resources", specs, nil),
	}}
}

func (r *cloudFormationRenderer) RenderPartitioned(groups []compile.Group) []File {
	files := make([]File, 0, len(groups))
	for _, grp := range groups {
		files = append(files, File{
			Path:    fmt.Sprintf("cloudformation/%s-template.yaml", grp.Category),
			Content: renderCFNTemplate(string(grp.Category)+" resources", grp.Specs, groups),
		})
	}
	return files
}

type cfnTemplate struct {
	local  map[string]*compile.ResourceSpec
	all    map[string]*compile.ResourceSpec
	specs  []*compile.ResourceSpec
	groups []compile.Group
	body   []string
}

func (w *cfnTemplate) line(format string, args ...any) {
	w.body = append(w.body, fmt.Sprintf(format, args...))
}

func renderCFNTemplate(description string, specs []*compile.ResourceSpec, groups []compile.Group) string {
	w := &cfnTemplate{
		local:  specByName(specs),
		all:    specByName(specs),
		specs:  specs,
		groups: groups,
	}
	if groups != nil {
		w.all = map[string]*compile.ResourceSpec{}
		for _, grp := range groups {
			for _, s := range grp.Specs {
				w.all[s.Name] = s
			}
		}
	}

	w.line("Resources:")
	for _, s := range specs {
		w.emitResource(s)
	}

	var b strings.Builder
	b.WriteString("AWSTemplateFormatVersion: '2010-09-09'\n")
	b.WriteString("Transform: AWS::Serverless-2016-10-31\n")
	fmt.Fprintf(&b, "Description: %s\n\n", description)
	if w.needsOriginParam() {
		b.WriteString("Parameters:\n")
		b.WriteString("  OriginDomain:\n")
		b.WriteString("    Type: String\n")
		b.WriteString("    Description: Domain name of the default distribution origin\n\n")
	}
	for _, line := range w.body {
		b.WriteString(line + "\n")
	}
	w.writeOutputs(&b)
	return b.String()
}

func (w *cfnTemplate) needsOriginParam() bool {
	for _, s := range w.specs {
		if s.Kind != graph.KindCDN {
			continue
		}
		hasOrigin := false
		for _, gr := range s.Grants {
			if gr.Access == compile.AccessOriginRead {
				hasOrigin = true
			}
		}
		if !hasOrigin {
			return true
		}
	}
	return false
}

// arnRef returns the YAML scalar for a resource ARN: a GetAtt for local
// resources, an ImportValue for resources owned by another stack.
func (w *cfnTemplate) arnRef(name string) string {
	s, ok := w.local[name]
	if !ok {
		return fmt.Sprintf("!ImportValue %s-arn", name)
	}
	switch s.Kind {
	case graph.KindTopic, graph.KindWorkflow:
		// Ref yields the ARN for these types.
		return "!Ref " + pascalCase(name)
	default:
		return fmt.Sprintf("!GetAtt %s.Arn", pascalCase(name))
	}
}

func (w *cfnTemplate) domainRef(name string) string {
	if _, ok := w.local[name]; ok {
		return fmt.Sprintf("!GetAtt %s.RegionalDomainName", pascalCase(name))
	}
	return fmt.Sprintf("!ImportValue %s-domain", name)
}

// grantActions maps each access level to the IAM actions it needs.
var grantActions = map[compile.Access][]string{
	compile.AccessReadWriteData:    {"dynamodb:GetItem", "dynamodb:PutItem", "dynamodb:UpdateItem", "dynamodb:DeleteItem", "dynamodb:Query", "dynamodb:Scan"},
	compile.AccessReadWriteObjects: {"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"},
	compile.AccessSendMessages:     {"sqs:SendMessage"},
	compile.AccessPublish:          {"sns:Publish"},
	compile.AccessPutEvents:        {"events:PutEvents"},
	compile.AccessPutRecords:       {"kinesis:PutRecord", "kinesis:PutRecords"},
	compile.AccessStartExecution:   {"states:StartExecution"},
	compile.AccessInvoke:           {"lambda:InvokeFunction"},
}

func (w *cfnTemplate) emitResource(s *compile.ResourceSpec) {
	id := pascalCase(s.Name)
	switch s.Kind {
	case graph.KindFunction:
		w.line("  %s:", id)
		w.line("    Type: AWS::Serverless::Function")
		w.line("    Properties:")
		w.line("      Runtime: nodejs20.x")
		w.line("      Handler: %s", propString(s, "handler", "index.handler"))
		w.line("      CodeUri: lambda/%s/", s.Name)
		w.line("      Timeout: %d", propInt(s, "timeout_seconds", 30))
		w.line("      MemorySize: %d", propInt(s, "memory_mb", 256))
		w.line("      Tracing: Active")
		w.emitPolicies(s)
		w.emitFunctionEvents(s)
	case graph.KindTable:
		w.line("  %s:", id)
		w.line("    Type: AWS::DynamoDB::Table")
		w.line("    Properties:")
		w.line("      BillingMode: PAY_PER_REQUEST")
		w.line("      AttributeDefinitions:")
		w.line("        - AttributeName: %s", propString(s, "partition_key", "id"))
		w.line("          AttributeType: S")
		w.line("      KeySchema:")
		w.line("        - AttributeName: %s", propString(s, "partition_key", "id"))
		w.line("          KeyType: HASH")
		w.line("      SSESpecification:")
		w.line("        SSEEnabled: true")
		w.line("      PointInTimeRecoverySpecification:")
		w.line("        PointInTimeRecoveryEnabled: true")
	case graph.KindStorage, graph.KindFrontend:
		w.line("  %s:", id)
		w.line("    Type: AWS::S3::Bucket")
		w.line("    Properties:")
		w.line("      BucketEncryption:")
		w.line("        ServerSideEncryptionConfiguration:")
		w.line("          - ServerSideEncryptionByDefault:")
		w.line("              SSEAlgorithm: AES256")
		w.line("      PublicAccessBlockConfiguration:")
		w.line("        BlockPublicAcls: true")
		w.line("        BlockPublicPolicy: true")
		w.line("        IgnorePublicAcls: true")
		w.line("        RestrictPublicBuckets: true")
		w.line("      VersioningConfiguration:")
		w.line("        Status: Enabled")
		w.emitBucketNotifications(s)
	case graph.KindQueue:
		w.line("  %s:", id)
		w.line("    Type: AWS::SQS::Queue")
		w.line("    Properties:")
		w.line("      SqsManagedSseEnabled: true")
		if dlq := propString(s, "dead_letter_target", ""); dlq != "" {
			w.line("      RedrivePolicy:")
			w.line("        deadLetterTargetArn: %s", w.arnRef(dlq))
			w.line("        maxReceiveCount: %d", propInt(s, "max_receive_count", 3))
		}
	case graph.KindAPIGateway:
		w.emitAPI(s)
	case graph.KindIdentity:
		mfa := "OPTIONAL"
		if propString(s, "multi_factor", "optional") == "required" {
			mfa = "ON"
		}
		w.line("  %s:", id)
		w.line("    Type: AWS::Cognito::UserPool")
		w.line("    Properties:")
		w.line("      AutoVerifiedAttributes:")
		w.line("        - email")
		w.line("      MfaConfiguration: %s", mfa)
		w.line("      Policies:")
		w.line("        PasswordPolicy:")
		w.line("          MinimumLength: %d", propInt(s, "password_min_length", 12))
		w.line("          RequireLowercase: true")
		w.line("          RequireUppercase: true")
		w.line("          RequireNumbers: true")
		w.line("          RequireSymbols: true")
		w.line("      UserPoolAddOns:")
		w.line("        AdvancedSecurityMode: ENFORCED")
	case graph.KindCDN:
		w.emitDistribution(s)
	case graph.KindEventBus:
		w.line("  %s:", id)
		w.line("    Type: AWS::Events::EventBus")
		w.line("    Properties:")
		w.line("      Name: %s", s.Name)
	case graph.KindTopic:
		w.line("  %s:", id)
		w.line("    Type: AWS::SNS::Topic")
		w.line("    Properties:")
		w.line("      KmsMasterKeyId: alias/aws/sns")
		w.emitTopicSubscriptions(s)
	case graph.KindWorkflow:
		w.line("  %s:", id)
		w.line("    Type: AWS::Serverless::StateMachine")
		w.line("    Properties:")
		w.line("      Tracing:")
		w.line("        Enabled: true")
		w.line("      Definition:")
		w.line("        StartAt: Done")
		w.line("        States:")
		w.line("          Done:")
		w.line("            Type: Pass")
		w.line("            End: true")
		w.emitStateMachinePolicies(s)
	case graph.KindStream:
		w.line("  %s:", id)
		w.line("    Type: AWS::Kinesis::Stream")
		w.line("    Properties:")
		w.line("      RetentionPeriodHours: %d", propInt(s, "retention_hours", 24))
		w.line("      StreamModeDetails:")
		w.line("        StreamMode: ON_DEMAND")
		w.line("      StreamEncryption:")
		w.line("        EncryptionType: KMS")
		w.line("        KeyId: alias/aws/kinesis")
	}
}

func (w *cfnTemplate) emitPolicies(s *compile.ResourceSpec) {
	if len(s.Grants) == 0 {
		return
	}
	w.line("      Policies:")
	for _, gr := range s.Grants {
		actions := grantActions[gr.Access]
		if actions == nil {
			continue
		}
		w.line("        - Statement:")
		w.line("            - Effect: Allow")
		w.line("              Action:")
		for _, a := range actions {
			w.line("                - %s", a)
		}
		w.line("              Resource: %s", w.arnRef(gr.Target))
	}
}

// emitFunctionEvents attaches SAM event sources for every local resource
// that feeds this function.
func (w *cfnTemplate) emitFunctionEvents(fn *compile.ResourceSpec) {
	header := false
	event := func() {
		if !header {
			w.line("      Events:")
			header = true
		}
	}
	for _, src := range w.specs {
		for _, gr := range src.Grants {
			if gr.Target != fn.Name {
				continue
			}
			switch {
			case gr.Access == compile.AccessConsumeMessages && src.Kind == graph.KindQueue:
				event()
				w.line("        %sSource:", pascalCase(src.Name))
				w.line("          Type: SQS")
				w.line("          Properties:")
				w.line("            Queue: %s", w.arnRef(src.Name))
			case gr.Access == compile.AccessConsumeMessages && src.Kind == graph.KindStream:
				event()
				w.line("        %sSource:", pascalCase(src.Name))
				w.line("          Type: Kinesis")
				w.line("          Properties:")
				w.line("            Stream: %s", w.arnRef(src.Name))
				w.line("            StartingPosition: LATEST")
			case gr.Access == compile.AccessRuleTarget:
				event()
				w.line("        %sRule:", pascalCase(src.Name))
				w.line("          Type: EventBridgeRule")
				w.line("          Properties:")
				w.line("            EventBusName: !Ref %s", pascalCase(src.Name))
				w.line("            Pattern:")
				w.line("              account:")
				w.line("                - !Ref AWS::AccountId")
			case gr.Access == compile.AccessSubscribe && src.Kind == graph.KindTopic:
				event()
				w.line("        %sSubscription:", pascalCase(src.Name))
				w.line("          Type: SNS")
				w.line("          Properties:")
				w.line("            Topic: !Ref %s", pascalCase(src.Name))
			case gr.Access == compile.AccessInvoke && src.Kind == graph.KindAPIGateway:
				event()
				w.line("        %sRoute:", pascalCase(src.Name))
				w.line("          Type: Api")
				w.line("          Properties:")
				w.line("            RestApiId: !Ref %s", pascalCase(src.Name))
				w.line("            Path: /%s", fn.Name)
				w.line("            Method: ANY")
			}
		}
	}
}

func (w *cfnTemplate) emitAPI(s *compile.ResourceSpec) {
	id := pascalCase(s.Name)
	w.line("  %s:", id)
	w.line("    Type: AWS::Serverless::Api")
	w.line("    Properties:")
	w.line("      Name: %s", s.Name)
	w.line("      StageName: %s", propString(s, "stage", "prod"))
	w.line("      TracingEnabled: true")
	w.line("      MethodSettings:")
	w.line("        - ResourcePath: '/*'")
	w.line("          HttpMethod: '*'")
	w.line("          LoggingLevel: INFO")
	if s.Authorizer != "" {
		w.line("      Auth:")
		w.line("        DefaultAuthorizer: CognitoAuthorizer")
		w.line("        Authorizers:")
		w.line("          CognitoAuthorizer:")
		w.line("            UserPoolArn: %s", w.arnRef(s.Authorizer))
	}
	// Cross-stack integrations cannot ride on implicit SAM function
	// events, so external functions are wired through an inline OpenAPI
	// body plus an explicit invoke permission.
	var external []string
	for _, gr := range s.Grants {
		if gr.Access != compile.AccessInvoke {
			continue
		}
		if _, ok := w.local[gr.Target]; !ok {
			external = append(external, gr.Target)
		}
	}
	if len(external) > 0 {
		w.line("      DefinitionBody:")
		w.line("        openapi: 3.0.1")
		w.line("        info:")
		w.line("          title: %s", s.Name)
		w.line("        paths:")
		for _, fn := range external {
			w.line("          /%s:", fn)
			w.line("            x-amazon-apigateway-any-method:")
			w.line("              x-amazon-apigateway-integration:")
			w.line("                type: aws_proxy")
			w.line("                httpMethod: POST")
			w.line("                uri: !Sub")
			w.line("                  - arn:${AWS::Partition}:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${FnArn}/invocations")
			w.line("                  - FnArn: %s", w.arnRef(fn))
		}
	}
	for _, fn := range external {
		w.line("  %s%sPermission:", pascalCase(fn), id)
		w.line("    Type: AWS::Lambda::Permission")
		w.line("    Properties:")
		w.line("      Action: lambda:InvokeFunction")
		w.line("      FunctionName: %s", w.arnRef(fn))
		w.line("      Principal: apigateway.amazonaws.com")
		w.line("      SourceArn: !Sub arn:${AWS::Partition}:execute-api:${AWS::Region}:${AWS::AccountId}:${%s}/*", id)
	}
}

func (w *cfnTemplate) emitBucketNotifications(s *compile.ResourceSpec) {
	var targets []string
	for _, gr := range s.Grants {
		if gr.Access == compile.AccessNotify {
			targets = append(targets, gr.Target)
		}
	}
	if len(targets) == 0 {
		return
	}
	w.line("      NotificationConfiguration:")
	w.line("        LambdaConfigurations:")
	for _, t := range targets {
		w.line("          - Event: s3:ObjectCreated:*")
		w.line("            Function: %s", w.arnRef(t))
	}
	id := pascalCase(s.Name)
	for _, t := range targets {
		w.line("  %s%sPermission:", pascalCase(t), id)
		w.line("    Type: AWS::Lambda::Permission")
		w.line("    Properties:")
		w.line("      Action: lambda:InvokeFunction")
		w.line("      FunctionName: %s", w.arnRef(t))
		w.line("      Principal: s3.amazonaws.com")
	}
}

func (w *cfnTemplate) emitTopicSubscriptions(s *compile.ResourceSpec) {
	id := pascalCase(s.Name)
	for _, gr := range s.Grants {
		if gr.Access != compile.AccessSubscribe {
			continue
		}
		if target, ok := w.all[gr.Target]; !ok || target.Kind != graph.KindQueue {
			continue
		}
		w.line("  %sTo%s:", id, pascalCase(gr.Target))
		w.line("    Type: AWS::SNS::Subscription")
		w.line("    Properties:")
		w.line("      Protocol: sqs")
		w.line("      TopicArn: !Ref %s", id)
		w.line("      Endpoint: %s", w.arnRef(gr.Target))
	}
}

func (w *cfnTemplate) emitStateMachinePolicies(s *compile.ResourceSpec) {
	if len(s.Grants) == 0 {
		return
	}
	w.line("      Policies:")
	for _, gr := range s.Grants {
		actions := grantActions[gr.Access]
		if actions == nil {
			continue
		}
		w.line("        - Statement:")
		w.line("            - Effect: Allow")
		w.line("              Action:")
		for _, a := range actions {
			w.line("                - %s", a)
		}
		w.line("              Resource: %s", w.arnRef(gr.Target))
	}
}

func (w *cfnTemplate) emitDistribution(s *compile.ResourceSpec) {
	id := pascalCase(s.Name)
	originDomain := "!Ref OriginDomain"
	for _, gr := range s.Grants {
		if gr.Access == compile.AccessOriginRead {
			originDomain = w.domainRef(gr.Target)
			break
		}
	}
	w.line("  %s:", id)
	w.line("    Type: AWS::CloudFront::Distribution")
	w.line("    Properties:")
	w.line("      DistributionConfig:")
	w.line("        Enabled: true")
	w.line("        Origins:")
	w.line("          - Id: primary")
	w.line("            DomainName: %s", originDomain)
	w.line("            S3OriginConfig:")
	w.line("              OriginAccessIdentity: ''")
	w.line("        DefaultCacheBehavior:")
	w.line("          TargetOriginId: primary")
	w.line("          ViewerProtocolPolicy: redirect-to-https")
	w.line("          CachePolicyId: 658327ea-f89d-4fab-a63d-7e88639e58f6")
	w.line("        ViewerCertificate:")
	w.line("          CloudFrontDefaultCertificate: true")
	w.line("          MinimumProtocolVersion: TLSv1.2_2021")
}

// writeOutputs exports the ARNs (and bucket domains) that other category
// templates import.
func (w *cfnTemplate) writeOutputs(b *strings.Builder) {
	if w.groups == nil {
		return
	}
	needed := crossGroupTargets(w.groups)
	var lines []string
	for _, s := range w.specs {
		if !needed[s.Name] {
			continue
		}
		id := pascalCase(s.Name)
		lines = append(lines,
			fmt.Sprintf("  %sArn:", id),
			fmt.Sprintf("    Value: %s", w.arnRef(s.Name)),
			"    Export:",
			fmt.Sprintf("      Name: %s-arn", s.Name),
		)
		if s.Kind == graph.KindStorage || s.Kind == graph.KindFrontend {
			lines = append(lines,
				fmt.Sprintf("  %sDomain:", id),
				fmt.Sprintf("    Value: !GetAtt %s.RegionalDomainName", id),
				"    Export:",
				fmt.Sprintf("      Name: %s-domain", s.Name),
			)
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("\nOutputs:\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
}
