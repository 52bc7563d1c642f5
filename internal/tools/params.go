package tools

import (
	"math"

	"github.com/eldtechnologies/agentslack/internal/apperr"
)

// ParamType is the primitive type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param declares one named parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Optional    bool      `json:"optional,omitempty"`
}

// validate checks presence and primitive type of every declared parameter.
// Undeclared extras are ignored.
func validate(params []Param, args Args) error {
	for _, p := range params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Optional {
				continue
			}
			return apperr.New(apperr.InvalidArgument, "missing parameter %q", p.Name)
		}
		if !hasType(v, p.Type) {
			return apperr.New(apperr.InvalidArgument, "parameter %q must be a %s", p.Name, p.Type)
		}
	}
	return nil
}

func hasType(v any, t ParamType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
	case TypeInteger:
		switch n := v.(type) {
		case int, int64, int32:
			return true
		case float64:
			return n == math.Trunc(n)
		}
	}
	return false
}
