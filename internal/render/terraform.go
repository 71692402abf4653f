package render

import (
	"fmt"
	"strings"

	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/graph"
)

// terraformRenderer emits HCL. Partitioning splits resources into one
// file per category inside a single root module, where resource
// addresses resolve across files without any export plumbing.
type terraformRenderer struct{}

func (r *terraformRenderer) Dialect() Dialect { return DialectTerraform }

func (r *terraformRenderer) RenderStack(specs []*compile.ResourceSpec) []File {
	files := tfBaseFiles(specs)
	return append(files, File{Path: "terraform/main.tf", Content: renderTFBody(specs, specByName(specs))})
}

func (r *terraformRenderer) RenderPartitioned(groups []compile.Group) []File {
	all := map[string]*compile.ResourceSpec{}
	var every []*compile.ResourceSpec
	for _, grp := range groups {
		for _, s := range grp.Specs {
			all[s.Name] = s
			every = append(every, s)
		}
	}
	files := tfBaseFiles(every)
	for _, grp := range groups {
		files = append(files, File{
			Path:    fmt.Sprintf("terraform/%s.tf", grp.Category),
			Content: renderTFBody(grp.Specs, all),
		})
	}
	return files
}

func tfBaseFiles(specs []*compile.ResourceSpec) []File {
	providers := `terraform {
  required_version = ">= 1.5"

  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = "~> 5.0"
    }
  }
}

provider "aws" {
  region = var.region
}

data "aws_caller_identity" "current" {}
`
	var vars strings.Builder
	vars.WriteString(`variable "region" {
  type        = string
  description = "AWS region to deploy into"
}
`)
	if tfNeedsOriginVar(specs) {
		vars.WriteString(`
variable "origin_domain" {
  type        = string
  description = "Domain name of the default distribution origin"
}
`)
	}
	return []File{
		{Path: "terraform/providers.tf", Content: providers},
		{Path: "terraform/variables.tf", Content: vars.String()},
	}
}

func tfNeedsOriginVar(specs []*compile.ResourceSpec) bool {
	for _, s := range specs {
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

type tfFile struct {
	all  map[string]*compile.ResourceSpec
	body []string
}

func (w *tfFile) line(format string, args ...any) {
	w.body = append(w.body, fmt.Sprintf(format, args...))
}

func renderTFBody(specs []*compile.ResourceSpec, all map[string]*compile.ResourceSpec) string {
	w := &tfFile{all: all}
	for _, s := range specs {
		w.emitResource(s)
		w.emitWiring(s)
	}
	var b strings.Builder
	for i, line := range w.body {
		if line == "" && i == len(w.body)-1 {
			continue
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// arn returns the address of a resource's ARN attribute.
func (w *tfFile) arn(name string) string {
	s := w.all[name]
	label := snakeCase(name)
	switch s.Kind {
	case graph.KindTable:
		return "aws_dynamodb_table." + label + ".arn"
	case graph.KindStorage, graph.KindFrontend:
		return "aws_s3_bucket." + label + ".arn"
	case graph.KindQueue:
		return "aws_sqs_queue." + label + ".arn"
	case graph.KindFunction:
		return "aws_lambda_function." + label + ".arn"
	case graph.KindTopic:
		return "aws_sns_topic." + label + ".arn"
	case graph.KindEventBus:
		return "aws_cloudwatch_event_bus." + label + ".arn"
	case graph.KindStream:
		return "aws_kinesis_stream." + label + ".arn"
	case graph.KindWorkflow:
		return "aws_sfn_state_machine." + label + ".arn"
	case graph.KindIdentity:
		return "aws_cognito_user_pool." + label + ".arn"
	}
	return ""
}

func (w *tfFile) emitResource(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	switch s.Kind {
	case graph.KindFunction:
		w.emitFunctionRole(s)
		w.line(`resource "aws_lambda_function" "%s" {`, label)
		w.line(`  function_name = "%s"`, s.Name)
		w.line(`  role          = aws_iam_role.%s.arn`, label)
		w.line(`  runtime       = "nodejs20.x"`)
		w.line(`  handler       = "%s"`, propString(s, "handler", "index.handler"))
		w.line(`  filename      = "lambda/%s.zip"`, s.Name)
		w.line(`  timeout       = %d`, propInt(s, "timeout_seconds", 30))
		w.line(`  memory_size   = %d`, propInt(s, "memory_mb", 256))
		w.line("")
		w.line(`  tracing_config {`)
		w.line(`    mode = "Active"`)
		w.line(`  }`)
		w.line(`}`)
	case graph.KindTable:
		w.line(`resource "aws_dynamodb_table" "%s" {`, label)
		w.line(`  name         = "%s"`, s.Name)
		w.line(`  billing_mode = "PAY_PER_REQUEST"`)
		w.line(`  hash_key     = "%s"`, propString(s, "partition_key", "id"))
		w.line("")
		w.line(`  attribute {`)
		w.line(`    name = "%s"`, propString(s, "partition_key", "id"))
		w.line(`    type = "S"`)
		w.line(`  }`)
		w.line("")
		w.line(`  server_side_encryption {`)
		w.line(`    enabled = true`)
		w.line(`  }`)
		w.line("")
		w.line(`  point_in_time_recovery {`)
		w.line(`    enabled = true`)
		w.line(`  }`)
		w.line(`}`)
	case graph.KindStorage, graph.KindFrontend:
		w.line(`resource "aws_s3_bucket" "%s" {`, label)
		w.line(`  bucket_prefix = "%s-"`, s.Name)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_s3_bucket_public_access_block" "%s" {`, label)
		w.line(`  bucket                  = aws_s3_bucket.%s.id`, label)
		w.line(`  block_public_acls       = true`)
		w.line(`  block_public_policy     = true`)
		w.line(`  ignore_public_acls      = true`)
		w.line(`  restrict_public_buckets = true`)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_s3_bucket_server_side_encryption_configuration" "%s" {`, label)
		w.line(`  bucket = aws_s3_bucket.%s.id`, label)
		w.line("")
		w.line(`  rule {`)
		w.line(`    apply_server_side_encryption_by_default {`)
		w.line(`      sse_algorithm = "AES256"`)
		w.line(`    }`)
		w.line(`  }`)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_s3_bucket_versioning" "%s" {`, label)
		w.line(`  bucket = aws_s3_bucket.%s.id`, label)
		w.line("")
		w.line(`  versioning_configuration {`)
		w.line(`    status = "Enabled"`)
		w.line(`  }`)
		w.line(`}`)
	case graph.KindQueue:
		w.line(`resource "aws_sqs_queue" "%s" {`, label)
		w.line(`  name                    = "%s"`, s.Name)
		w.line(`  sqs_managed_sse_enabled = true`)
		if dlq := propString(s, "dead_letter_target", ""); dlq != "" {
			w.line("")
			w.line(`  redrive_policy = jsonencode({`)
			w.line(`    deadLetterTargetArn = %s`, w.arn(dlq))
			w.line(`    maxReceiveCount     = %d`, propInt(s, "max_receive_count", 3))
			w.line(`  })`)
		}
		w.line(`}`)
	case graph.KindAPIGateway:
		w.emitAPI(s)
	case graph.KindIdentity:
		mfa := "OPTIONAL"
		if propString(s, "multi_factor", "optional") == "required" {
			mfa = "ON"
		}
		w.line(`resource "aws_cognito_user_pool" "%s" {`, label)
		w.line(`  name              = "%s"`, s.Name)
		w.line(`  mfa_configuration = "%s"`, mfa)
		w.line("")
		w.line(`  password_policy {`)
		w.line(`    minimum_length    = %d`, propInt(s, "password_min_length", 12))
		w.line(`    require_lowercase = true`)
		w.line(`    require_uppercase = true`)
		w.line(`    require_numbers   = true`)
		w.line(`    require_symbols   = true`)
		w.line(`  }`)
		w.line("")
		w.line(`  software_token_mfa_configuration {`)
		w.line(`    enabled = true`)
		w.line(`  }`)
		w.line("")
		w.line(`  user_pool_add_ons {`)
		w.line(`    advanced_security_mode = "ENFORCED"`)
		w.line(`  }`)
		w.line(`}`)
	case graph.KindCDN:
		w.emitDistribution(s)
	case graph.KindEventBus:
		w.line(`resource "aws_cloudwatch_event_bus" "%s" {`, label)
		w.line(`  name = "%s"`, s.Name)
		w.line(`}`)
	case graph.KindTopic:
		w.line(`resource "aws_sns_topic" "%s" {`, label)
		w.line(`  name              = "%s"`, s.Name)
		w.line(`  kms_master_key_id = "alias/aws/sns"`)
		w.line(`}`)
	case graph.KindWorkflow:
		w.emitStateMachine(s)
	case graph.KindStream:
		w.line(`resource "aws_kinesis_stream" "%s" {`, label)
		w.line(`  name             = "%s"`, s.Name)
		w.line(`  retention_period = %d`, propInt(s, "retention_hours", 24))
		w.line(`  encryption_type  = "KMS"`)
		w.line(`  kms_key_id       = "alias/aws/kinesis"`)
		w.line("")
		w.line(`  stream_mode_details {`)
		w.line(`    stream_mode = "ON_DEMAND"`)
		w.line(`  }`)
		w.line(`}`)
	}
	w.line("")
}

func (w *tfFile) emitFunctionRole(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	w.line(`resource "aws_iam_role" "%s" {`, label)
	w.line(`  name = "%s-role"`, s.Name)
	w.line("")
	w.line(`  assume_role_policy = jsonencode({`)
	w.line(`    Version = "2012-10-17"`)
	w.line(`    Statement = [{`)
	w.line(`      Effect    = "Allow"`)
	w.line(`      Principal = { Service = "lambda.amazonaws.com" }`)
	w.line(`      Action    = "sts:AssumeRole"`)
	w.line(`    }]`)
	w.line(`  })`)
	w.line(`}`)
	w.line("")
	w.line(`resource "aws_iam_role_policy_attachment" "%s_logs" {`, label)
	w.line(`  role       = aws_iam_role.%s.name`, label)
	w.line(`  policy_arn = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"`)
	w.line(`}`)
	w.line("")
}

func (w *tfFile) emitAPI(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	w.line(`resource "aws_api_gateway_rest_api" "%s" {`, label)
	w.line(`  name = "%s"`, s.Name)
	w.line(`}`)
	if s.Authorizer != "" {
		w.line("")
		w.line(`resource "aws_api_gateway_authorizer" "%s" {`, label)
		w.line(`  name          = "%s-authorizer"`, s.Name)
		w.line(`  rest_api_id   = aws_api_gateway_rest_api.%s.id`, label)
		w.line(`  type          = "COGNITO_USER_POOLS"`)
		w.line(`  provider_arns = [%s]`, w.arn(s.Authorizer))
		w.line(`}`)
	}
	var routes []string
	for _, gr := range s.Grants {
		if gr.Access != compile.AccessInvoke {
			continue
		}
		fn := snakeCase(gr.Target)
		route := label + "_" + fn
		routes = append(routes, route)
		w.line("")
		w.line(`resource "aws_api_gateway_resource" "%s" {`, route)
		w.line(`  rest_api_id = aws_api_gateway_rest_api.%s.id`, label)
		w.line(`  parent_id   = aws_api_gateway_rest_api.%s.root_resource_id`, label)
		w.line(`  path_part   = "%s"`, gr.Target)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_api_gateway_method" "%s" {`, route)
		w.line(`  rest_api_id   = aws_api_gateway_rest_api.%s.id`, label)
		w.line(`  resource_id   = aws_api_gateway_resource.%s.id`, route)
		w.line(`  http_method   = "ANY"`)
		if s.Authorizer != "" {
			w.line(`  authorization = "COGNITO_USER_POOLS"`)
			w.line(`  authorizer_id = aws_api_gateway_authorizer.%s.id`, label)
		} else {
			w.line(`  authorization = "NONE"`)
		}
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_api_gateway_integration" "%s" {`, route)
		w.line(`  rest_api_id             = aws_api_gateway_rest_api.%s.id`, label)
		w.line(`  resource_id             = aws_api_gateway_resource.%s.id`, route)
		w.line(`  http_method             = aws_api_gateway_method.%s.http_method`, route)
		w.line(`  type                    = "AWS_PROXY"`)
		w.line(`  integration_http_method = "POST"`)
		w.line(`  uri                     = aws_lambda_function.%s.invoke_arn`, fn)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_lambda_permission" "%s" {`, route)
		w.line(`  action        = "lambda:InvokeFunction"`)
		w.line(`  function_name = aws_lambda_function.%s.function_name`, fn)
		w.line(`  principal     = "apigateway.amazonaws.com"`)
		w.line(`  source_arn    = "${aws_api_gateway_rest_api.%s.execution_arn}/*"`, label)
		w.line(`}`)
	}
	if len(routes) > 0 {
		w.line("")
		w.line(`resource "aws_api_gateway_deployment" "%s" {`, label)
		w.line(`  rest_api_id = aws_api_gateway_rest_api.%s.id`, label)
		w.line("")
		w.line(`  depends_on = [`)
		for _, route := range routes {
			w.line(`    aws_api_gateway_integration.%s,`, route)
		}
		w.line(`  ]`)
		w.line(`}`)
		w.line("")
		w.line(`resource "aws_api_gateway_stage" "%s" {`, label)
		w.line(`  rest_api_id          = aws_api_gateway_rest_api.%s.id`, label)
		w.line(`  deployment_id        = aws_api_gateway_deployment.%s.id`, label)
		w.line(`  stage_name           = "%s"`, propString(s, "stage", "prod"))
		w.line(`  xray_tracing_enabled = true`)
		w.line(`}`)
	}
}

func (w *tfFile) emitDistribution(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	originDomain := "var.origin_domain"
	for _, gr := range s.Grants {
		if gr.Access == compile.AccessOriginRead {
			originDomain = fmt.Sprintf("aws_s3_bucket.%s.bucket_regional_domain_name", snakeCase(gr.Target))
			break
		}
	}
	w.line(`resource "aws_cloudfront_distribution" "%s" {`, label)
	w.line(`  enabled = true`)
	w.line("")
	w.line(`  origin {`)
	w.line(`    domain_name = %s`, originDomain)
	w.line(`    origin_id   = "primary"`)
	w.line("")
	w.line(`    s3_origin_config {`)
	w.line(`      origin_access_identity = ""`)
	w.line(`    }`)
	w.line(`  }`)
	w.line("")
	w.line(`  default_cache_behavior {`)
	w.line(`    allowed_methods        = ["GET", "HEAD"]`)
	w.line(`    cached_methods         = ["GET", "HEAD"]`)
	w.line(`    target_origin_id       = "primary"`)
	w.line(`    viewer_protocol_policy = "redirect-to-https"`)
	w.line(`    cache_policy_id        = "658327ea-f89d-4fab-a63d-7e88639e58f6"`)
	w.line(`  }`)
	w.line("")
	w.line(`  restrictions {`)
	w.line(`    geo_restriction {`)
	w.line(`      restriction_type = "none"`)
	w.line(`    }`)
	w.line(`  }`)
	w.line("")
	w.line(`  viewer_certificate {`)
	w.line(`    cloudfront_default_certificate = true`)
	w.line(`    minimum_protocol_version       = "TLSv1.2_2021"`)
	w.line(`  }`)
	w.line(`}`)
}

func (w *tfFile) emitStateMachine(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	w.line(`resource "aws_iam_role" "%s" {`, label)
	w.line(`  name = "%s-role"`, s.Name)
	w.line("")
	w.line(`  assume_role_policy = jsonencode({`)
	w.line(`    Version = "2012-10-17"`)
	w.line(`    Statement = [{`)
	w.line(`      Effect    = "Allow"`)
	w.line(`      Principal = { Service = "states.amazonaws.com" }`)
	w.line(`      Action    = "sts:AssumeRole"`)
	w.line(`    }]`)
	w.line(`  })`)
	w.line(`}`)
	w.line("")
	w.line(`resource "aws_sfn_state_machine" "%s" {`, label)
	w.line(`  name     = "%s"`, s.Name)
	w.line(`  role_arn = aws_iam_role.%s.arn`, label)
	w.line("")
	w.line(`  definition = jsonencode({`)
	w.line(`    StartAt = "Done"`)
	w.line(`    States = {`)
	w.line(`      Done = {`)
	w.line(`        Type = "Pass"`)
	w.line(`        End  = true`)
	w.line(`      }`)
	w.line(`    }`)
	w.line(`  })`)
	w.line("")
	w.line(`  tracing_configuration {`)
	w.line(`    enabled = true`)
	w.line(`  }`)
	w.line(`}`)
}

// emitWiring translates a spec's grants into IAM policies, event source
// mappings, subscriptions, and notifications owned by the source.
func (w *tfFile) emitWiring(s *compile.ResourceSpec) {
	label := snakeCase(s.Name)
	for _, gr := range s.Grants {
		tgt := snakeCase(gr.Target)
		pair := label + "_" + tgt
		switch gr.Access {
		case compile.AccessReadWriteData, compile.AccessReadWriteObjects,
			compile.AccessSendMessages, compile.AccessPublish,
			compile.AccessPutEvents, compile.AccessPutRecords,
			compile.AccessStartExecution:
			w.emitGrantPolicy(label, pair, gr)
		case compile.AccessInvoke:
			if s.Kind != graph.KindAPIGateway {
				w.emitGrantPolicy(label, pair, gr)
			}
		case compile.AccessConsumeMessages:
			w.line(`resource "aws_lambda_event_source_mapping" "%s" {`, pair)
			w.line(`  event_source_arn = %s`, w.arn(s.Name))
			w.line(`  function_name    = aws_lambda_function.%s.arn`, tgt)
			if s.Kind == graph.KindStream {
				w.line(`  starting_position = "LATEST"`)
			}
			w.line(`}`)
			w.line("")
			actions := []string{"sqs:ReceiveMessage", "sqs:DeleteMessage", "sqs:GetQueueAttributes"}
			if s.Kind == graph.KindStream {
				actions = []string{"kinesis:GetRecords", "kinesis:GetShardIterator", "kinesis:DescribeStream", "kinesis:ListShards"}
			}
			w.emitPolicyDoc(tgt, pair, actions, w.arn(s.Name))
		case compile.AccessRuleTarget:
			w.line(`resource "aws_cloudwatch_event_rule" "%s" {`, pair)
			w.line(`  event_bus_name = aws_cloudwatch_event_bus.%s.name`, label)
			w.line("")
			w.line(`  event_pattern = jsonencode({`)
			w.line(`    account = [data.aws_caller_identity.current.account_id]`)
			w.line(`  })`)
			w.line(`}`)
			w.line("")
			w.line(`resource "aws_cloudwatch_event_target" "%s" {`, pair)
			w.line(`  rule           = aws_cloudwatch_event_rule.%s.name`, pair)
			w.line(`  event_bus_name = aws_cloudwatch_event_bus.%s.name`, label)
			w.line(`  arn            = aws_lambda_function.%s.arn`, tgt)
			w.line(`}`)
			w.line("")
			w.emitLambdaPermission(pair, tgt, "events.amazonaws.com", "aws_cloudwatch_event_rule."+pair+".arn")
		case compile.AccessSubscribe:
			if target, ok := w.all[gr.Target]; ok && target.Kind == graph.KindQueue {
				w.line(`resource "aws_sns_topic_subscription" "%s" {`, pair)
				w.line(`  topic_arn = aws_sns_topic.%s.arn`, label)
				w.line(`  protocol  = "sqs"`)
				w.line(`  endpoint  = %s`, w.arn(gr.Target))
				w.line(`}`)
				w.line("")
			} else {
				w.line(`resource "aws_sns_topic_subscription" "%s" {`, pair)
				w.line(`  topic_arn = aws_sns_topic.%s.arn`, label)
				w.line(`  protocol  = "lambda"`)
				w.line(`  endpoint  = aws_lambda_function.%s.arn`, tgt)
				w.line(`}`)
				w.line("")
				w.emitLambdaPermission(pair, tgt, "sns.amazonaws.com", "aws_sns_topic."+label+".arn")
			}
		case compile.AccessNotify:
			w.line(`resource "aws_s3_bucket_notification" "%s" {`, pair)
			w.line(`  bucket = aws_s3_bucket.%s.id`, label)
			w.line("")
			w.line(`  lambda_function {`)
			w.line(`    lambda_function_arn = aws_lambda_function.%s.arn`, tgt)
			w.line(`    events              = ["s3:ObjectCreated:*"]`)
			w.line(`  }`)
			w.line("")
			w.line(`  depends_on = [aws_lambda_permission.%s]`, pair)
			w.line(`}`)
			w.line("")
			w.emitLambdaPermission(pair, tgt, "s3.amazonaws.com", "aws_s3_bucket."+label+".arn")
		case compile.AccessOriginRead:
			// Wired as the distribution origin in emitResource.
		}
	}
}

func (w *tfFile) emitGrantPolicy(roleLabel, pair string, gr compile.Grant) {
	w.emitPolicyDoc(roleLabel, pair, grantActions[gr.Access], w.arn(gr.Target))
}

func (w *tfFile) emitPolicyDoc(roleLabel, pair string, actions []string, resource string) {
	w.line(`resource "aws_iam_role_policy" "%s" {`, pair)
	w.line(`  name = "%s"`, strings.ReplaceAll(pair, "_", "-"))
	w.line(`  role = aws_iam_role.%s.id`, roleLabel)
	w.line("")
	w.line(`  policy = jsonencode({`)
	w.line(`    Version = "2012-10-17"`)
	w.line(`    Statement = [{`)
	w.line(`      Effect   = "Allow"`)
	w.line(`      Action   = [%s]`, quoteJoin(actions))
	w.line(`      Resource = %s`, resource)
	w.line(`    }]`)
	w.line(`  })`)
	w.line(`}`)
	w.line("")
}

func (w *tfFile) emitLambdaPermission(pair, fnLabel, principal, sourceArn string) {
	w.line(`resource "aws_lambda_permission" "%s" {`, pair)
	w.line(`  action        = "lambda:InvokeFunction"`)
	w.line(`  function_name = aws_lambda_function.%s.function_name`, fnLabel)
	w.line(`  principal     = "%s"`, principal)
	w.line(`  source_arn    = %s`, sourceArn)
	w.line(`}`)
	w.line("")
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = `"` + it + `"`
	}
	return strings.Join(quoted, ", ")
}
