package router

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	routernode "github.com/tanpawarit/Plant-Conversational-Hub/agent/nodes/router"
)

func (r *Router) compileRouteGraph(
	ctx context.Context,
) (compose.Runnable[routernode.GraphInput, contractx.ResponseEnvelope], error) {
	graph := compose.NewGraph[routernode.GraphInput, contractx.ResponseEnvelope]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in routernode.GraphInput) (*routernode.GraphState, error) {
			return routernode.ValidateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("explicit_path",
		compose.InvokableLambda(func(ctx context.Context, in *routernode.GraphState) (contractx.ResponseEnvelope, error) {
			st, err := routernode.ResolveExplicit(in, r.registry)
			if err != nil {
				return contractx.ResponseEnvelope{}, err
			}
			return r.completeRoute(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node explicit_path: %w", err)
	}

	if err := graph.AddLambdaNode("inferred_path",
		compose.InvokableLambda(func(ctx context.Context, in *routernode.GraphState) (contractx.ResponseEnvelope, error) {
			st, err := routernode.ResolveInferred(ctx, in, r.extractor, r.registry, r.fallbackIntent)
			if err != nil {
				return contractx.ResponseEnvelope{}, err
			}
			return r.completeRoute(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node inferred_path: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *routernode.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			if in.Explicit() {
				return "explicit_path", nil
			}
			return "inferred_path", nil
		},
		map[string]bool{
			"explicit_path": true,
			"inferred_path": true,
		},
	)

	if err := graph.AddBranch("validate_request", branch); err != nil {
		return nil, fmt.Errorf("add resolution branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate_request: %w", err)
	}
	if err := graph.AddEdge("explicit_path", compose.END); err != nil {
		return nil, fmt.Errorf("add edge explicit_path->end: %w", err)
	}
	if err := graph.AddEdge("inferred_path", compose.END); err != nil {
		return nil, fmt.Errorf("add edge inferred_path->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.route"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

// completeRoute dispatches the resolved request (when resolution produced
// one) and finalizes the envelope.
func (r *Router) completeRoute(ctx context.Context, st *routernode.GraphState) (contractx.ResponseEnvelope, error) {
	if st != nil && st.Envelope == nil {
		var err error
		st, err = routernode.DispatchHandler(ctx, st, r.handlers.Resolve)
		if err != nil {
			return contractx.ResponseEnvelope{}, err
		}
	}
	return routernode.FinalizeEnvelope(st)
}
