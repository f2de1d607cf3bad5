package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to the driver. Resolvers
// return plain maps so the custom numeric domain types serialize as Float
// and Int.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: coordinateType},
			"zoom":   &graphql.Field{Type: graphql.Int},
		},
	})

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PixelPoint",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Int},
			"y": &graphql.Field{Type: graphql.Int},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteFrame",
		Fields: graphql.Fields{
			"center":        &graphql.Field{Type: coordinateType},
			"zoom":          &graphql.Field{Type: graphql.Int},
			"offset":        &graphql.Field{Type: graphql.Int},
			"points":        &graphql.Field{Type: graphql.NewList(pointType)},
			"length_meters": &graphql.Field{Type: graphql.Float},
			"seq":           &graphql.Field{Type: graphql.Int},
		},
	})

	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"vehicle_id": &graphql.Field{Type: graphql.String},
			"time":       &graphql.Field{Type: graphql.String},
			"coordinate": &graphql.Field{Type: coordinateType},
			"heading":    &graphql.Field{Type: graphql.Float},
			"speed":      &graphql.Field{Type: graphql.Float},
		},
	})

	serviceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Service",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: graphql.String},
			"running": &graphql.Field{Type: graphql.Boolean},
			"reason":  &graphql.Field{Type: graphql.String},
			"error":   &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"view": &graphql.Field{
				Type:        viewType,
				Description: "Current map center and zoom",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return viewMap(deps.Driver.View()), nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Latest projected route frame, null before the first one",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					frame, seq, ok := deps.Driver.RouteFrame()
					if !ok {
						return nil, nil
					}
					return routeMap(frame, seq), nil
				},
			},
			"position": &graphql.Field{
				Type:        positionType,
				Description: "Last GPS fix, null before the first one",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					fix, ok := deps.Driver.Position()
					if !ok {
						return nil, nil
					}
					return map[string]interface{}{
						"vehicle_id": fix.VehicleID,
						"time":       fix.Time.UTC().Format(time.RFC3339Nano),
						"coordinate": coordinateMap(fix.Coordinate),
						"heading":    fix.Heading,
						"speed":      fix.Speed,
					}, nil
				},
			},
			"services": &graphql.Field{
				Type:        graphql.NewList(serviceType),
				Description: "State of the map tile and route services",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Driver.Services(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setView": &graphql.Field{
				Type: viewType,
				Args: graphql.FieldConfigArgument{
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center, err := parseCoordinate(p.Args["lat"].(float64), p.Args["lon"].(float64))
					if err != nil {
						return nil, err
					}
					v := deps.Driver.View()
					v.Center = center
					if z, ok := p.Args["zoom"].(int); ok {
						v.Zoom = domain.NewZoom(z)
					}
					deps.Driver.SetView(v)
					return viewMap(deps.Driver.View()), nil
				},
			},
			"pan": &graphql.Field{
				Type: viewType,
				Args: graphql.FieldConfigArgument{
					"direction": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					dir, err := usecases.ParseDirection(p.Args["direction"].(string))
					if err != nil {
						return nil, err
					}
					deps.Driver.Pan(dir)
					return viewMap(deps.Driver.View()), nil
				},
			},
			"zoomIn": &graphql.Field{
				Type: viewType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Driver.ZoomIn()
					return viewMap(deps.Driver.View()), nil
				},
			},
			"zoomOut": &graphql.Field{
				Type: viewType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Driver.ZoomOut()
					return viewMap(deps.Driver.View()), nil
				},
			},
			"addRoutePoint": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					coord, err := parseCoordinate(p.Args["lat"].(float64), p.Args["lon"].(float64))
					if err != nil {
						return nil, err
					}
					if err := deps.Driver.PushCoordinate(p.Context, coord); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func coordinateMap(c domain.Coordinate) map[string]interface{} {
	return map[string]interface{}{"lat": c.Latitude.Get(), "lon": c.Longitude.Get()}
}

func viewMap(v usecases.View) map[string]interface{} {
	return map[string]interface{}{"center": coordinateMap(v.Center), "zoom": v.Zoom.Get()}
}

func routeMap(r usecases.RouteResponse, seq uint64) map[string]interface{} {
	points := make([]map[string]interface{}, len(r.Points))
	for i, p := range r.Points {
		points[i] = map[string]interface{}{"x": p.X, "y": p.Y}
	}
	return map[string]interface{}{
		"center":        coordinateMap(r.Center),
		"zoom":          r.Zoom.Get(),
		"offset":        r.Offset,
		"points":        points,
		"length_meters": r.LengthMeters,
		"seq":           int(seq),
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// Programming error in the schema definition.
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
