// Package server exposes the chat workflow, the rule engine, and the
// code generators over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/archon-io/archon/internal/advisor"
	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/graph"
	"github.com/archon-io/archon/internal/render"
	"github.com/archon-io/archon/internal/security"
	"github.com/archon-io/archon/internal/templates"
	"github.com/archon-io/archon/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	BasePath           string
	Advisor            advisor.Advisor
	AdvisorTimeout     time.Duration
	PartitionThreshold int
}

// New returns an HTTP handler exposing the API.
func New(cfg Config) http.Handler {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	router := chi.NewRouter()
	router.Use(requestLogger)
	router.Use(corsMiddleware)

	api := humachi.New(router, huma.DefaultConfig("Archon API", "0.1.0"))
	group := huma.NewGroup(api, basePath)

	orch := &workflow.Orchestrator{
		Advisor:            cfg.Advisor,
		AdvisorTimeout:     cfg.AdvisorTimeout,
		PartitionThreshold: cfg.PartitionThreshold,
	}

	registerHealth(api)
	registerChat(group, orch)
	registerReview(group)
	registerGenerate(group, cfg.PartitionThreshold)
	registerTemplates(group)

	return router
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// ChatRequest is one conversation turn.
type ChatRequest struct {
	Message string       `json:"message" minLength:"1" doc:"What the user wants"`
	Graph   *graph.Graph `json:"graph,omitempty" doc:"Current architecture, empty to start fresh"`
	Dialect string       `json:"dialect,omitempty" doc:"Output dialect when generating code"`
}

// ChatResponse carries the updated architecture and everything the turn
// produced.
type ChatResponse struct {
	Reply   string            `json:"reply"`
	Intent  advisor.Intent    `json:"intent"`
	Graph   *graph.Graph      `json:"graph"`
	Merge   graph.MergeResult `json:"merge"`
	Review  *security.Review  `json:"review,omitempty"`
	Files   []render.File     `json:"files,omitempty"`
	Blocked bool              `json:"blocked"`
	Steps   []string          `json:"steps"`
}

func registerChat(api huma.API, orch *workflow.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Run one conversation turn",
	}, func(ctx context.Context, input *struct {
		Body ChatRequest `json:"body"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		st := workflow.State{Message: input.Body.Message, Graph: input.Body.Graph}
		if input.Body.Dialect != "" {
			d, err := render.ParseDialect(input.Body.Dialect)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			st.Dialect = d
		}
		st, err := orch.Run(ctx, st)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: ChatResponse{
			Reply:   st.Reply,
			Intent:  st.Intent,
			Graph:   st.Graph,
			Merge:   st.Merge,
			Review:  st.Review,
			Files:   st.Files,
			Blocked: st.Blocked,
			Steps:   st.Steps,
		}}, nil
	})
}

// ReviewRequest asks for a security evaluation, optionally applying the
// suggested config fixes.
type ReviewRequest struct {
	Graph *graph.Graph `json:"graph" required:"true"`
	Fix   bool         `json:"fix,omitempty" doc:"Apply suggested config fixes and re-evaluate"`
}

type ReviewResponse struct {
	Review      security.Review         `json:"review"`
	Graph       *graph.Graph            `json:"graph,omitempty" doc:"Fixed graph, present when fix was requested"`
	Changes     []security.ConfigChange `json:"changes,omitempty"`
	FixedReview *security.Review        `json:"fixed_review,omitempty"`
}

func registerReview(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "review",
		Method:      http.MethodPost,
		Path:        "/review",
		Summary:     "Evaluate a graph against the security rules",
	}, func(ctx context.Context, input *struct {
		Body ReviewRequest `json:"body"`
	}) (*struct {
		Body ReviewResponse `json:"body"`
	}, error) {
		g := input.Body.Graph
		if g == nil {
			return nil, huma.Error400BadRequest("graph is required")
		}
		if err := g.Validate(); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		review := security.Evaluate(g)
		out := ReviewResponse{Review: review}
		if input.Body.Fix {
			fixed, changes := security.Autofix(g, &review)
			fixedReview := security.Evaluate(fixed)
			out.Graph = fixed
			out.Changes = changes
			out.FixedReview = &fixedReview
		}
		return &struct {
			Body ReviewResponse `json:"body"`
		}{Body: out}, nil
	})
}

// GenerateRequest asks for infrastructure code in one dialect.
type GenerateRequest struct {
	Graph   *graph.Graph `json:"graph" required:"true"`
	Dialect string       `json:"dialect,omitempty" doc:"cdk, cdk-python, cloudformation, or terraform"`
}

type GenerateResponse struct {
	Review  security.Review `json:"review"`
	Blocked bool            `json:"blocked"`
	Files   []render.File   `json:"files,omitempty"`
}

func registerGenerate(api huma.API, partitionThreshold int) {
	huma.Register(api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/generate",
		Summary:     "Generate infrastructure code, gated by the security review",
	}, func(ctx context.Context, input *struct {
		Body GenerateRequest `json:"body"`
	}) (*struct {
		Body GenerateResponse `json:"body"`
	}, error) {
		g := input.Body.Graph
		if g == nil {
			return nil, huma.Error400BadRequest("graph is required")
		}
		if err := g.Validate(); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		dialect := render.DialectCDK
		if input.Body.Dialect != "" {
			var err error
			dialect, err = render.ParseDialect(input.Body.Dialect)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
		}
		renderer, err := render.Get(dialect)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		review := security.Evaluate(g)
		out := GenerateResponse{Review: review, Blocked: !review.Passed}
		if review.Passed {
			threshold := partitionThreshold
			if threshold <= 0 {
				threshold = compile.DefaultPartitionThreshold
			}
			specs := compile.Compile(g)
			if groups := compile.Partition(specs, threshold); groups != nil {
				out.Files = renderer.RenderPartitioned(groups)
			} else {
				out.Files = renderer.RenderStack(specs)
			}
		}
		return &struct {
			Body GenerateResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerTemplates(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List the built-in architecture templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Templates []templates.Template `json:"templates"`
		} `json:"body"`
	}, error) {
		out := &struct {
			Body struct {
				Templates []templates.Template `json:"templates"`
			} `json:"body"`
		}{}
		out.Body.Templates = templates.All()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}",
		Summary:     "Fetch one architecture template",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body templates.Template `json:"body"`
	}, error) {
		tpl, ok := templates.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("no template named " + input.ID)
		}
		return &struct {
			Body templates.Template `json:"body"`
		}{Body: tpl}, nil
	})
}
