// Package inspect serves a read only GraphQL view of the running visualizer:
// the startup configuration and the live frame loop statistics.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/golang/glog"
	"github.com/graphql-go/graphql"

	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/config"
)

// Path is where the handler is mounted by the command.
const Path = "/api/v1/graphql"

// StatsSource reports frame loop statistics. *frame.Assembler implements it.
type StatsSource interface {
	Stats() frame.Stats
}

// Server answers GraphQL queries.
type Server struct {
	schema graphql.Schema
}

// NewServer builds the schema. cfg is exposed as it is; it must not be modified
// afterwards.
func NewServer(cfg *config.Config, stats StatsSource) (*Server, error) {
	types := map[reflect.Type]*graphql.Object{}
	configType := NewGraphqlType(reflect.TypeOf(config.Config{}), types)
	statsType := NewGraphqlType(reflect.TypeOf(frame.Stats{}), types)

	rootQuery := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "RootQuery",
			Fields: graphql.Fields{
				"config": &graphql.Field{
					Type: configType,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return cfg, nil
					},
				},
				"stats": &graphql.Field{
					Type: statsType,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return stats.Stats(), nil
					},
				},
			},
		},
	)
	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: rootQuery})
	if err != nil {
		return nil, fmt.Errorf("building graphql schema: %w", err)
	}
	return &Server{schema: schema}, nil
}

// Query runs a GraphQL request against the schema.
func (s *Server) Query(query string, vars map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  query,
		VariableValues: vars,
	})
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// ServeHTTP accepts GET with a query parameter or POST with a JSON body.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	glog.V(1).Infof("graphql query: %s", req.Query)

	res := s.Query(req.Query, req.Variables)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		glog.Warningf("writing graphql response: %v", err)
	}
}

// NewGraphqlType builds an object type for a struct type. Fields are named by
// their yaml or json tag; untagged fields are skipped. Nested structs become
// their own object types, memoised in types.
func NewGraphqlType(typ reflect.Type, types map[reflect.Type]*graphql.Object) *graphql.Object {
	if obj, ok := types[typ]; ok {
		return obj
	}

	fields := graphql.Fields{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := fieldTag(&f)
		if tag == "" || tag == "-" {
			continue
		}

		var ft graphql.Output
		switch f.Type.Kind() {
		case reflect.Bool:
			ft = graphql.Boolean
		case reflect.Float32, reflect.Float64:
			ft = graphql.Float
		case reflect.String:
			ft = graphql.String
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ft = graphql.Int
		case reflect.Struct:
			ft = NewGraphqlType(f.Type, types)
		default:
			panic(fmt.Sprint("unsupported type ", f.Type))
		}
		fields[tag] = &graphql.Field{Type: ft, Resolve: resolver(i)}
	}

	obj := graphql.NewObject(
		graphql.ObjectConfig{
			Name:   typ.Name(),
			Fields: fields,
		})
	types[typ] = obj
	return obj
}

func resolver(field int) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		v := reflect.Indirect(reflect.ValueOf(p.Source))
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("unexpected source %#v", p.Source)
		}
		return v.Field(field).Interface(), nil
	}
}

func fieldTag(f *reflect.StructField) string {
	t, ok := f.Tag.Lookup("yaml")
	if !ok {
		t = f.Tag.Get("json")
	}
	return strings.Split(t, ",")[0]
}
