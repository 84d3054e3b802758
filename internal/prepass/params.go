package prepass

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
)

// SubstituteParameters returns a copy of q with every $name replaced by
// a literal from params.
//
// Values are typed as follows: integers become Long, other numbers Double,
// booleans Boolean, strings Temporal when they match the ISO-8601 grammar
// and String otherwise. Slices expand into several literals where a list
// is allowed (MATCHES and function arguments). A missing LIKE parameter
// becomes the empty string.
func SubstituteParameters(q *aql.Query, params map[string]any) (*aql.Query, error) {
	out := q.Clone()
	s := &substituter{params: params}

	for i := range out.Select.Items {
		switch v := out.Select.Items[i].Expr.(type) {
		case *aql.IdentifiedPath:
			if err := s.identifiedPath(v); err != nil {
				return nil, err
			}
		case *aql.AggregateFunction:
			if v.Path != nil {
				if err := s.identifiedPath(v.Path); err != nil {
					return nil, err
				}
			}
		case *aql.Function:
			if err := s.function(v); err != nil {
				return nil, err
			}
		}
	}

	if err := s.containment(out.From); err != nil {
		return nil, err
	}

	var err error
	aql.WalkConditions(out.Where, func(c aql.Condition) {
		if err == nil {
			err = s.condition(c)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, ob := range out.OrderBy {
		if err := s.identifiedPath(ob.Path); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type substituter struct {
	params map[string]any
}

func (s *substituter) condition(c aql.Condition) error {
	switch v := c.(type) {
	case *aql.ComparisonCondition:
		if err := s.operandInPlace(v.Left); err != nil {
			return err
		}
		if p, ok := v.Value.(*aql.Parameter); ok {
			prim, err := s.single(p, nil)
			if err != nil {
				return err
			}
			v.Value = prim
			return nil
		}
		return s.operandInPlace(v.Value)
	case *aql.MatchesCondition:
		if err := s.identifiedPath(v.Path); err != nil {
			return err
		}
		values, err := s.expand(v.Values)
		if err != nil {
			return err
		}
		v.Values = values
	case *aql.LikeCondition:
		if err := s.identifiedPath(v.Path); err != nil {
			return err
		}
		if p, ok := v.Value.(*aql.Parameter); ok {
			val, found := s.params[p.Name]
			if !found || val == nil {
				v.Value = aql.String("")
			} else {
				v.Value = aql.StringToPrimitive(fmt.Sprint(val))
			}
		}
	case *aql.ExistsCondition:
		return s.identifiedPath(v.Path)
	}
	return nil
}

// operandInPlace substitutes inside paths and functions; bare parameters
// are handled by the caller.
func (s *substituter) operandInPlace(o aql.Operand) error {
	switch v := o.(type) {
	case *aql.IdentifiedPath:
		return s.identifiedPath(v)
	case *aql.Function:
		return s.function(v)
	}
	return nil
}

func (s *substituter) function(f *aql.Function) error {
	for _, a := range f.Args {
		if err := s.operandInPlace(a); err != nil {
			return err
		}
	}
	args, err := s.expand(f.Args)
	if err != nil {
		return err
	}
	f.Args = args
	return nil
}

// expand replaces every parameter of list by its values.
func (s *substituter) expand(list []aql.Operand) ([]aql.Operand, error) {
	if len(list) == 0 {
		return list, nil
	}
	out := make([]aql.Operand, 0, len(list))
	for _, o := range list {
		p, ok := o.(*aql.Parameter)
		if !ok {
			out = append(out, o)
			continue
		}
		prims, err := s.resolve(p)
		if err != nil {
			return nil, err
		}
		for _, prim := range prims {
			out = append(out, prim)
		}
	}
	if len(out) == 0 {
		return nil, aql.NewParameterError("Parameter replacement resulted in empty operand list")
	}
	return out, nil
}

func (s *substituter) containment(c aql.Containment) error {
	switch v := c.(type) {
	case *aql.ContainmentClass:
		if err := s.predicates(v.Predicates); err != nil {
			return err
		}
		return s.containment(v.Contains)
	case *aql.ContainmentVersion:
		if v.Predicate != nil {
			if err := s.comparisonPredicate(v.Predicate); err != nil {
				return err
			}
		}
		return s.containment(v.Contains)
	case *aql.ContainmentSet:
		for _, val := range v.Values {
			if err := s.containment(val); err != nil {
				return err
			}
		}
	case *aql.ContainmentNot:
		return s.containment(v.Contains)
	}
	return nil
}

func (s *substituter) identifiedPath(ip *aql.IdentifiedPath) error {
	if err := s.predicates(ip.RootPredicate); err != nil {
		return err
	}
	return s.objectPath(ip.Path)
}

func (s *substituter) objectPath(p *aql.ObjectPath) error {
	if p == nil {
		return nil
	}
	for i := range p.Nodes {
		if err := s.predicates(p.Nodes[i].Predicates); err != nil {
			return err
		}
	}
	return nil
}

func (s *substituter) predicates(ors []aql.AndPredicate) error {
	for i := range ors {
		for j := range ors[i].Operands {
			if err := s.comparisonPredicate(&ors[i].Operands[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *substituter) comparisonPredicate(cmp *aql.ComparisonPredicate) error {
	if err := s.objectPath(cmp.Path); err != nil {
		return err
	}
	p, ok := cmp.Value.(*aql.Parameter)
	if !ok {
		return nil
	}
	prim, err := s.single(p, func(prim aql.Primitive) error {
		return validateArchetypeNodeID(cmp.Path, prim)
	})
	if err != nil {
		return err
	}
	cmp.Value = prim
	return nil
}

func validateArchetypeNodeID(path *aql.ObjectPath, prim aql.Primitive) error {
	if !path.Equal(aql.ArchetypeNodeIDPath) {
		return nil
	}
	str, ok := prim.(aql.String)
	if !ok {
		return aql.NewParameterError("Invalid parameter type for archetype_node_id")
	}
	if strings.HasPrefix(string(str), "openEHR-") {
		if _, err := aql.ParseArchetypeID(string(str)); err != nil {
			return aql.NewParameterError("Invalid parameter for archetype_node_id")
		}
	}
	return nil
}

// single resolves p to exactly one literal.
func (s *substituter) single(p *aql.Parameter, check func(aql.Primitive) error) (aql.Primitive, error) {
	prims, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	switch len(prims) {
	case 0:
		return nil, aql.NewParameterError("Empty parameter replacement results")
	case 1:
	default:
		return nil, aql.NewParameterError("One of the parameters does not support multiple values")
	}
	if check != nil {
		if err := check(prims[0]); err != nil {
			return nil, err
		}
	}
	return prims[0], nil
}

func (s *substituter) resolve(p *aql.Parameter) ([]aql.Primitive, error) {
	val, ok := s.params[p.Name]
	if !ok || val == nil {
		return nil, aql.NewParameterError("Missing parameter '%s'", p.Name)
	}

	rv := reflect.ValueOf(val)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]aql.Primitive, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			prim, err := toPrimitive(p.Name, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, prim)
		}
		return out, nil
	}

	prim, err := toPrimitive(p.Name, val)
	if err != nil {
		return nil, err
	}
	return []aql.Primitive{prim}, nil
}

func toPrimitive(name string, val any) (aql.Primitive, error) {
	switch v := val.(type) {
	case nil:
		return nil, aql.NewParameterError("Missing parameter '%s'", name)
	case int:
		return aql.Long(v), nil
	case int8:
		return aql.Long(v), nil
	case int16:
		return aql.Long(v), nil
	case int32:
		return aql.Long(v), nil
	case int64:
		return aql.Long(v), nil
	case uint8:
		return aql.Long(v), nil
	case uint16:
		return aql.Long(v), nil
	case uint32:
		return aql.Long(v), nil
	case uint:
		return unsignedPrimitive(name, uint64(v))
	case uint64:
		return unsignedPrimitive(name, v)
	case float32:
		return aql.Double(v), nil
	case float64:
		return aql.Double(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return aql.Long(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, aql.NewParameterError("Type of parameter '%s' is not supported", name)
		}
		return aql.Double(f), nil
	case string:
		return aql.StringToPrimitive(v), nil
	case bool:
		return aql.Boolean(v), nil
	default:
		return nil, aql.NewParameterError("Type of parameter '%s' is not supported", name)
	}
}

func unsignedPrimitive(name string, v uint64) (aql.Primitive, error) {
	if v > math.MaxInt64 {
		return nil, aql.NewParameterError("Value of parameter '%s' is out of range: %d", name, v)
	}
	return aql.Long(int64(v)), nil
}
