package api

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/graphql-go/graphql"
	graphqlhandler "github.com/graphql-go/handler"
)

// newGraphQLHandler builds a read-only GraphQL endpoint over the feed,
// jar and oracle state. Writes stay on the REST surface.
func (s *Server) newGraphQLHandler() (http.Handler, error) {
	tipType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tip",
		Fields: graphql.Fields{
			"from":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"fromDisplay": &graphql.Field{Type: graphql.String},
			"amountWei":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"message":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"blockNumber": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"txHash":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"logIndex":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	jarType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Jar",
		Fields: graphql.Fields{
			"address":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name":       &graphql.Field{Type: graphql.String},
			"owner":      &graphql.Field{Type: graphql.String},
			"balanceWei": &graphql.Field{Type: graphql.String},
		},
	})

	priceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Price",
		Fields: graphql.Fields{
			"usd":       &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"stale":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"fetchedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	gasType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Gas",
		Fields: graphql.Fields{
			"priceWei":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"fallbackUsed": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"fetchedAt":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"tips": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tipType))),
				Args: graphql.FieldConfigArgument{
					"jar": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
				},
				Resolve: s.resolveTips,
			},
			"jar": &graphql.Field{
				Type: jarType,
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
				},
				Resolve: s.resolveJar,
			},
			"jars": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(jarType))),
				Resolve: s.resolveJars,
			},
			"price": &graphql.Field{
				Type:    priceType,
				Resolve: s.resolvePrice,
			},
			"gas": &graphql.Field{
				Type:    gasType,
				Resolve: s.resolveGas,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	return graphqlhandler.New(&graphqlhandler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: true,
	}), nil
}

func (s *Server) resolveTips(p graphql.ResolveParams) (interface{}, error) {
	raw, _ := p.Args["jar"].(string)
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("invalid jar address %q", raw)
	}

	result, err := s.deps.Feed.Feed(p.Context, common.HexToAddress(raw))
	if err != nil {
		return nil, err
	}

	tips := make([]map[string]interface{}, 0, len(result.Tips))
	for _, tip := range result.Tips {
		tips = append(tips, map[string]interface{}{
			"from":        tip.From.Hex(),
			"fromDisplay": tip.FromDisplay,
			"amountWei":   tip.Amount.String(),
			"message":     tip.Message,
			"blockNumber": float64(tip.BlockNumber),
			"txHash":      tip.TxHash.Hex(),
			"logIndex":    int(tip.LogIndex),
		})
	}
	return tips, nil
}

func (s *Server) resolveJar(p graphql.ResolveParams) (interface{}, error) {
	raw, _ := p.Args["address"].(string)
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("invalid jar address %q", raw)
	}
	jar := common.HexToAddress(raw)

	owner, err := s.deps.Jars.Owner(p.Context, jar)
	if err != nil {
		return nil, err
	}
	balance, err := s.deps.Jars.Balance(p.Context, jar)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"address":    jar.Hex(),
		"owner":      owner.Hex(),
		"balanceWei": balance.String(),
	}, nil
}

func (s *Server) resolveJars(p graphql.ResolveParams) (interface{}, error) {
	if s.deps.Registry == nil {
		return []map[string]interface{}{}, nil
	}

	entries, err := s.deps.Registry.List()
	if err != nil {
		return nil, err
	}

	jarList := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		jarList = append(jarList, map[string]interface{}{
			"address": e.Address,
			"name":    e.Name,
		})
	}
	return jarList, nil
}

func (s *Server) resolvePrice(p graphql.ResolveParams) (interface{}, error) {
	if s.deps.Price == nil {
		return nil, nil
	}
	snap := s.deps.Price.Snapshot()
	if snap == nil {
		return nil, nil
	}
	return map[string]interface{}{
		"usd":       snap.USD,
		"stale":     snap.Stale,
		"fetchedAt": snap.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func (s *Server) resolveGas(p graphql.ResolveParams) (interface{}, error) {
	if s.deps.Gas == nil {
		return nil, nil
	}
	estimate := s.deps.Gas.Estimate()
	if estimate == nil {
		return nil, nil
	}
	return map[string]interface{}{
		"priceWei":     estimate.PriceWei.String(),
		"fallbackUsed": estimate.FallbackUsed,
		"fetchedAt":    estimate.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
