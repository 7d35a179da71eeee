package veld

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

///////////////////////////////////////////////////////////////////////////////
// Errors
///////////////////////////////////////////////////////////////////////////////

var (
	ErrMalformedJSON = errors.New("input is not valid JSON")
	ErrMalformedYAML = errors.New("input is not valid YAML")
)

///////////////////////////////////////////////////////////////////////////////
// JSON
///////////////////////////////////////////////////////////////////////////////

// DecodeJSON parses a JSON document into a Value tree. Object key order is
// preserved, so error locations and extras reporting follow the document.
// Numbers without a fractional part or exponent decode as integers.
func DecodeJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Null(), ErrMalformedJSON
	}
	return jsonValue(gjson.ParseBytes(data)), nil
}

func jsonValue(res gjson.Result) Value {
	switch res.Type {
	case gjson.Null:
		return Null()
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.String:
		return String(res.String())
	case gjson.Number:
		return jsonNumber(res)
	default: // gjson.JSON: object or array
		if res.IsArray() {
			var elems []Value
			res.ForEach(func(_, item gjson.Result) bool {
				elems = append(elems, jsonValue(item))
				return true
			})
			return List(elems...)
		}
		om := orderedmap.New[string, Value]()
		res.ForEach(func(key, item gjson.Result) bool {
			om.Set(key.String(), jsonValue(item))
			return true
		})
		return Dict(om)
	}
}

// jsonNumber keeps integers integral. gjson parses every number as float64,
// which silently loses precision past 2^53, so integral literals are
// re-parsed from their raw text.
func jsonNumber(res gjson.Result) Value {
	raw := res.Raw
	if !strings.ContainsAny(raw, ".eE") {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Int(n)
		}
	}
	// Everything else, including integrals too large for int64, stays float.
	return Float(res.Float())
}

///////////////////////////////////////////////////////////////////////////////
// YAML
///////////////////////////////////////////////////////////////////////////////

// DecodeYAML parses a YAML document into a Value tree, preserving mapping key
// order. Only the first document of a multi-document stream is decoded.
func DecodeYAML(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Null(), fmt.Errorf("%w: %v", ErrMalformedYAML, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return Null(), nil
	}
	return yamlValue(root.Content[0])
}

func yamlValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return yamlScalar(node)
	case yaml.SequenceNode:
		elems := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := yamlValue(child)
			if err != nil {
				return Null(), err
			}
			elems = append(elems, v)
		}
		return List(elems...), nil
	case yaml.MappingNode:
		om := orderedmap.New[string, Value]()
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := yamlValue(node.Content[i+1])
			if err != nil {
				return Null(), err
			}
			om.Set(node.Content[i].Value, v)
		}
		return Dict(om), nil
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	default:
		return Null(), fmt.Errorf("%w: unsupported node kind %d at line %d", ErrMalformedYAML, node.Kind, node.Line)
	}
}

func yamlScalar(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(node.Value))
		if err != nil {
			return Null(), fmt.Errorf("%w: bad bool %q at line %d", ErrMalformedYAML, node.Value, node.Line)
		}
		return Bool(b), nil
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: bad int %q at line %d", ErrMalformedYAML, node.Value, node.Line)
		}
		return Int(n), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			switch strings.TrimPrefix(strings.ToLower(node.Value), "+") {
			case ".inf":
				return Float(math.Inf(1)), nil
			case "-.inf":
				return Float(math.Inf(-1)), nil
			case ".nan":
				return Float(math.NaN()), nil
			}
			return Null(), fmt.Errorf("%w: bad float %q at line %d", ErrMalformedYAML, node.Value, node.Line)
		}
		return Float(f), nil
	default:
		return String(node.Value), nil
	}
}
