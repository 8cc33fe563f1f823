package ecs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PropertyType is the type tag written next to every property value.
type PropertyType string

const (
	TypeFloat  PropertyType = "float"
	TypeInt    PropertyType = "int"
	TypeBool   PropertyType = "bool"
	TypeString PropertyType = "string"
	TypeVec2   PropertyType = "vec2"
	TypeVec3   PropertyType = "vec3"
	TypeVec4   PropertyType = "vec4"
)

// Property is one entry of a descriptor fragment. Category, ReadOnly and
// Internal are editor annotations and only written on request.
type Property struct {
	Type     PropertyType    `json:"type"`
	Value    json.RawMessage `json:"value"`
	Category string          `json:"category,omitempty"`
	ReadOnly bool            `json:"readOnly,omitempty"`
	Internal bool            `json:"internal,omitempty"`
}

// UnmarshalJSON accepts both the tagged form {"type":..,"value":..} and a
// bare value, in which case the declared type of the property applies.
func (p *Property) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		type tagged Property
		var t tagged
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return err
		}
		if t.Value != nil {
			*p = Property(t)
			return nil
		}
	}
	*p = Property{Value: append(json.RawMessage(nil), trimmed...)}
	return nil
}

// Fragment maps property names to values for one instance.
type Fragment map[string]Property

type CompileOptions struct {
	// EmitDefaults writes properties whose value equals the kind's default.
	EmitDefaults bool
	// Annotate adds category/readOnly/internal metadata for editors.
	Annotate bool
}

type propertySpec struct {
	name     string
	typ      PropertyType
	category string
	readOnly bool
	internal bool
}

type PropertyOption func(*propertySpec)

func Category(c string) PropertyOption { return func(s *propertySpec) { s.category = c } }
func ReadOnly() PropertyOption         { return func(s *propertySpec) { s.readOnly = true } }
func Internal() PropertyOption         { return func(s *propertySpec) { s.internal = true } }

type binding interface {
	spec() *propertySpec
	compile(ref Ref, emitDefaults bool) (json.RawMessage, bool, error)
	init(ref Ref, raw json.RawMessage) error
}

// Properties is the reflection schema of a kind: the ordered list of
// exposed columns.
type Properties struct {
	bindings []binding
	byName   map[string]binding
}

func newProperties() *Properties {
	return &Properties{byName: make(map[string]binding)}
}

func (p *Properties) add(b binding) {
	name := b.spec().name
	if _, ok := p.byName[name]; ok {
		panic(fmt.Sprintf("ecs: property %q exposed twice", name))
	}
	p.bindings = append(p.bindings, b)
	p.byName[name] = b
}

// Names lists exposed properties in declaration order.
func (p *Properties) Names() []string {
	names := make([]string, len(p.bindings))
	for i, b := range p.bindings {
		names[i] = b.spec().name
	}
	return names
}

// Type returns the declared tag of a property.
func (p *Properties) Type(name string) (PropertyType, bool) {
	b, ok := p.byName[name]
	if !ok {
		return "", false
	}
	return b.spec().typ, true
}

// Compile builds the fragment of one slot.
func (p *Properties) Compile(ref Ref, opts CompileOptions) (Fragment, error) {
	frag := make(Fragment, len(p.bindings))
	for _, b := range p.bindings {
		raw, emit, err := b.compile(ref, opts.EmitDefaults)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", b.spec().name, err)
		}
		if !emit {
			continue
		}
		s := b.spec()
		prop := Property{Type: s.typ, Value: raw}
		if opts.Annotate {
			prop.Category = s.category
			prop.ReadOnly = s.readOnly
			prop.Internal = s.internal
		}
		frag[s.name] = prop
	}
	return frag, nil
}

// Init writes every known property present in frag. Bad properties are
// skipped; their errors are returned together.
func (p *Properties) Init(ref Ref, frag Fragment) []error {
	var errs []error
	for _, b := range p.bindings {
		s := b.spec()
		prop, ok := frag[s.name]
		if !ok {
			continue
		}
		if prop.Type != "" && prop.Type != s.typ {
			errs = append(errs, fmt.Errorf("property %q: declared %s, got %s: %w", s.name, s.typ, prop.Type, ErrPropertyTypeMismatch))
			continue
		}
		if err := b.init(ref, prop.Value); err != nil {
			errs = append(errs, fmt.Errorf("property %q: %w", s.name, err))
		}
	}
	return errs
}

// holder is implemented by every manager.
type holder interface {
	Properties() *Properties
}

// Expose publishes a column as a descriptor property. The tag is derived
// from T.
func Expose[T comparable](h holder, c *Column[T], name string, opts ...PropertyOption) {
	cd := codecFor[T]()
	h.Properties().add(&columnBinding[T]{s: newSpec(name, cd.typ, opts), col: c, cd: cd})
}

// ExposeConverted publishes a column whose serialized form is a float that
// differs from the stored value, e.g. an angle kept in radians but written in
// degrees. Both conversions work in float64 and the stored type is rounded to
// once, so compiling and re-initializing restores the exact stored value.
func ExposeConverted[T comparable](h holder, c *Column[T], name string, toDesc func(T) float64, fromDesc func(float64) T, opts ...PropertyOption) {
	h.Properties().add(&convertedBinding[T]{
		s:        newSpec(name, TypeFloat, opts),
		col:      c,
		toDesc:   toDesc,
		fromDesc: fromDesc,
	})
}

// Degrees and Radians are the float64 angle conversions for ExposeConverted.
func Degrees(rad float32) float64 { return float64(rad) * 180 / math.Pi }
func Radians(deg float64) float32 { return float32(deg * math.Pi / 180) }

func newSpec(name string, typ PropertyType, opts []PropertyOption) *propertySpec {
	s := &propertySpec{name: name, typ: typ}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type columnBinding[T comparable] struct {
	s   *propertySpec
	col *Column[T]
	cd  codec[T]
}

func (b *columnBinding[T]) spec() *propertySpec { return b.s }

func (b *columnBinding[T]) compile(ref Ref, emitDefaults bool) (json.RawMessage, bool, error) {
	v := b.col.Get(ref)
	if !emitDefaults && v == b.col.Default() {
		return nil, false, nil
	}
	raw, err := json.Marshal(b.cd.encode(v))
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (b *columnBinding[T]) init(ref Ref, raw json.RawMessage) error {
	v, err := b.cd.decode(raw)
	if err != nil {
		return err
	}
	b.col.Set(ref, v)
	return nil
}

type convertedBinding[T comparable] struct {
	s        *propertySpec
	col      *Column[T]
	toDesc   func(T) float64
	fromDesc func(float64) T
}

func (b *convertedBinding[T]) spec() *propertySpec { return b.s }

func (b *convertedBinding[T]) compile(ref Ref, emitDefaults bool) (json.RawMessage, bool, error) {
	v := b.col.Get(ref)
	if !emitDefaults && v == b.col.Default() {
		return nil, false, nil
	}
	raw, err := json.Marshal(b.toDesc(v))
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (b *convertedBinding[T]) init(ref Ref, raw json.RawMessage) error {
	f, err := decodeFloat64(raw)
	if err != nil {
		return err
	}
	b.col.Set(ref, b.fromDesc(f))
	return nil
}

type codec[T any] struct {
	typ    PropertyType
	encode func(T) any
	decode func(json.RawMessage) (T, error)
}

func codecFor[T any]() codec[T] {
	var zero T
	var c any
	switch any(zero).(type) {
	case float32:
		c = codec[float32]{TypeFloat, func(v float32) any { return float64(v) }, decodeFloat32}
	case float64:
		c = codec[float64]{TypeFloat, func(v float64) any { return v }, decodeFloat64}
	case int32:
		c = codec[int32]{TypeInt, func(v int32) any { return v }, decodeInt[int32]}
	case int:
		c = codec[int]{TypeInt, func(v int) any { return v }, decodeInt[int]}
	case uint32:
		c = codec[uint32]{TypeInt, func(v uint32) any { return v }, decodeInt[uint32]}
	case bool:
		c = codec[bool]{TypeBool, func(v bool) any { return v }, decodeBool}
	case string:
		c = codec[string]{TypeString, func(v string) any { return v }, decodeString}
	case mgl32.Vec2:
		c = codec[mgl32.Vec2]{TypeVec2, func(v mgl32.Vec2) any { return floats(v[:]) }, decodeVec2}
	case mgl32.Vec3:
		c = codec[mgl32.Vec3]{TypeVec3, func(v mgl32.Vec3) any { return floats(v[:]) }, decodeVec3}
	case mgl32.Vec4:
		c = codec[mgl32.Vec4]{TypeVec4, func(v mgl32.Vec4) any { return floats(v[:]) }, decodeVec4}
	case mgl32.Quat:
		c = codec[mgl32.Quat]{TypeVec4, encodeQuat, decodeQuat}
	default:
		panic(fmt.Sprintf("ecs: no property codec for %T", zero))
	}
	return c.(codec[T])
}

func floats(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func decodeAny(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPropertyTypeMismatch, err)
	}
	return v, nil
}

func mismatch(want string, got any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrPropertyTypeMismatch, want, got)
}

func decodeFloat64(raw json.RawMessage) (float64, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, mismatch("number", v)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPropertyTypeMismatch, err)
	}
	return f, nil
}

func decodeFloat32(raw json.RawMessage) (float32, error) {
	f, err := decodeFloat64(raw)
	return float32(f), err
}

func decodeInt[T int | int32 | uint32](raw json.RawMessage) (T, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, mismatch("integer", v)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPropertyTypeMismatch, err)
	}
	if int64(T(i)) != i {
		return 0, fmt.Errorf("%w: %d out of range", ErrPropertyTypeMismatch, i)
	}
	return T(i), nil
}

func decodeBool(raw json.RawMessage) (bool, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, mismatch("bool", v)
	}
	return b, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", mismatch("string", v)
	}
	return s, nil
}

func decodeFloats(raw json.RawMessage, n int) ([]float32, error) {
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, mismatch(fmt.Sprintf("array of %d numbers", n), v)
	}
	if len(arr) != n {
		return nil, fmt.Errorf("%w: want %d components, got %d", ErrPropertyTypeMismatch, n, len(arr))
	}
	out := make([]float32, n)
	for i, e := range arr {
		num, ok := e.(json.Number)
		if !ok {
			return nil, mismatch("number", e)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPropertyTypeMismatch, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func decodeVec2(raw json.RawMessage) (mgl32.Vec2, error) {
	fs, err := decodeFloats(raw, 2)
	if err != nil {
		return mgl32.Vec2{}, err
	}
	return mgl32.Vec2{fs[0], fs[1]}, nil
}

func decodeVec3(raw json.RawMessage) (mgl32.Vec3, error) {
	fs, err := decodeFloats(raw, 3)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{fs[0], fs[1], fs[2]}, nil
}

func decodeVec4(raw json.RawMessage) (mgl32.Vec4, error) {
	fs, err := decodeFloats(raw, 4)
	if err != nil {
		return mgl32.Vec4{}, err
	}
	return mgl32.Vec4{fs[0], fs[1], fs[2], fs[3]}, nil
}

// Quaternions are written as [x, y, z, w].
func encodeQuat(q mgl32.Quat) any {
	return floats([]float32{q.V[0], q.V[1], q.V[2], q.W})
}

func decodeQuat(raw json.RawMessage) (mgl32.Quat, error) {
	fs, err := decodeFloats(raw, 4)
	if err != nil {
		return mgl32.Quat{}, err
	}
	return mgl32.Quat{W: fs[3], V: mgl32.Vec3{fs[0], fs[1], fs[2]}}, nil
}
