package aql

// Primitive is a literal value.
//
// Primitive types:
//   - String: quoted text
//   - Temporal: quoted text matching the ISO-8601 date/time grammar
//   - Long: integer
//   - Double: floating point number, always rendered with a decimal point
//   - Boolean: true/false
//   - Null: NULL
type Primitive interface {
	Operand
	ColumnExpr
	// Value returns the Go value of the literal (string, int64, float64, bool or nil).
	Value() any
	primitive() // Marker method - seals interface to this package
}

// String is a string literal.
type String string

// Temporal is a date, time or date-time literal kept in its textual form.
type Temporal string

// Long is an integer literal.
type Long int64

// Double is a floating point literal.
type Double float64

// Boolean is a boolean literal.
type Boolean bool

// Null is the NULL literal.
type Null struct{}

func (s String) Value() any   { return string(s) }
func (t Temporal) Value() any { return string(t) }
func (l Long) Value() any     { return int64(l) }
func (d Double) Value() any   { return float64(d) }
func (b Boolean) Value() any  { return bool(b) }
func (Null) Value() any       { return nil }

func (String) primitive()   {}
func (Temporal) primitive() {}
func (Long) primitive()     {}
func (Double) primitive()   {}
func (Boolean) primitive()  {}
func (Null) primitive()     {}

func (String) operand()   {}
func (Temporal) operand() {}
func (Long) operand()     {}
func (Double) operand()   {}
func (Boolean) operand()  {}
func (Null) operand()     {}

func (String) columnExpr()   {}
func (Temporal) columnExpr() {}
func (Long) columnExpr()     {}
func (Double) columnExpr()   {}
func (Boolean) columnExpr()  {}
func (Null) columnExpr()     {}

// StringValue returns the text of a String or Temporal primitive.
func StringValue(o Operand) (string, bool) {
	switch v := o.(type) {
	case String:
		return string(v), true
	case Temporal:
		return string(v), true
	default:
		return "", false
	}
}

// IsNumeric reports whether the operand is a Long or Double.
func IsNumeric(o Operand) bool {
	switch o.(type) {
	case Long, Double:
		return true
	default:
		return false
	}
}
