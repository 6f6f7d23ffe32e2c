package serializer

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/ValentinKolb/planet/rpc/wire"
	"github.com/puzpuzpuz/xsync/v3"
)

// maxDepth bounds the nesting of sequences, maps and events on decode
const maxDepth = 64

// sequence kinds following the SEQUENCE tag
const (
	seqArray byte = 0
	seqList  byte = 1
	seqNull  byte = 0xFF
)

// NewBinaryCodec creates a tagged binary codec. VALUE payloads are encoded
// with objects.
func NewBinaryCodec(objects IObjectEncoder) IValueCodec {
	return &binaryCodecImpl{
		objects: objects,
		byName:  xsync.NewMapOf[string, reflect.Type](),
		byType:  xsync.NewMapOf[reflect.Type, string](),
	}
}

// binaryCodecImpl implements IValueCodec with one tag byte per value and
// big-endian payloads
type binaryCodecImpl struct {
	objects IObjectEncoder
	byName  *xsync.MapOf[string, reflect.Type]
	byType  *xsync.MapOf[reflect.Type, string]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueCodec)
// --------------------------------------------------------------------------

func (c *binaryCodecImpl) RegisterValue(name string, prototype any) error {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("%w: nil prototype for %q", ErrUnsupportedType, name)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if prev, loaded := c.byName.LoadOrStore(name, t); loaded && prev != t {
		return fmt.Errorf("value name %q already registered for %s", name, prev)
	}
	c.byType.Store(t, name)
	return nil
}

func (c *binaryCodecImpl) Encode(w *wire.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		writeCode(w, CodeNull)
	case Void:
		writeCode(w, CodeVoid)
	case int8:
		writeCode(w, CodeByte)
		_ = w.WriteByte(byte(x))
	case uint8:
		writeCode(w, CodeByte)
		_ = w.WriteByte(x)
	case int16:
		writeCode(w, CodeShort)
		w.WriteInt16(x)
	case uint16:
		writeCode(w, CodeInt)
		w.WriteInt32(int32(x))
	case int32:
		writeCode(w, CodeInt)
		w.WriteInt32(x)
	case uint32:
		writeCode(w, CodeLong)
		w.WriteInt64(int64(x))
	case int64:
		writeCode(w, CodeLong)
		w.WriteInt64(x)
	case int:
		writeCode(w, CodeLong)
		w.WriteInt64(int64(x))
	case uint:
		return c.encodeUnsigned(w, uint64(x))
	case uint64:
		return c.encodeUnsigned(w, x)
	case float32:
		writeCode(w, CodeFloat)
		w.WriteFloat32(x)
	case float64:
		writeCode(w, CodeDouble)
		w.WriteFloat64(x)
	case bool:
		writeCode(w, CodeBoolean)
		w.WriteBool(x)
	case string:
		writeCode(w, CodeString)
		w.WriteString(x)
	case []byte:
		if x == nil {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeBinary)
		w.WriteBytes(x)
	case StreamRef:
		writeCode(w, CodeStream)
		w.WriteInt32(x.ID)
	case Enum:
		writeCode(w, CodeEnum)
		w.WriteString(x.Type)
		w.WriteInt32(x.Ordinal)
	case RemoteRef:
		writeCode(w, CodeRemote)
		w.WriteString(x.TypeNames)
		w.WriteString(x.PeerID)
		w.WriteString(x.Path)
	case Event:
		return c.encodeEvent(w, x)
	case *TypeRef:
		writeCode(w, CodeType)
		writeType(w, x)
	case TypeRef:
		writeCode(w, CodeType)
		writeType(w, &x)
	case *Exception:
		if x == nil {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeException)
		w.WriteString(x.TypeName)
		w.WriteString(x.Message)
	case []any:
		if x == nil {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeSequence)
		_ = w.WriteByte(seqList)
		w.WriteInt32(int32(len(x)))
		writeType(w, nil)
		for _, elem := range x {
			if err := c.Encode(w, elem); err != nil {
				return err
			}
		}
	case map[string]any:
		return c.encodeStringMap(w, x)
	default:
		return c.encodeReflect(w, v)
	}
	return nil
}

func (c *binaryCodecImpl) Decode(r *wire.Reader) (any, error) {
	return c.decode(r, 0)
}

// --------------------------------------------------------------------------
// Helper Methods (encoding)
// --------------------------------------------------------------------------

func writeCode(w *wire.Writer, code TypeCode) {
	_ = w.WriteByte(byte(code))
}

func writeType(w *wire.Writer, t *TypeRef) {
	if t == nil {
		writeCode(w, CodeNull)
		return
	}
	writeCode(w, t.Code)
	switch t.Code {
	case CodeValue, CodeRemote, CodeEvent, CodeException, CodeEnum:
		w.WriteString(t.Name)
	case CodeSequence:
		writeType(w, t.Elem)
	}
}

func (c *binaryCodecImpl) encodeUnsigned(w *wire.Writer, v uint64) error {
	if v > math.MaxInt64 {
		return fmt.Errorf("%w: %d overflows LONG", ErrUnsupportedType, v)
	}
	writeCode(w, CodeLong)
	w.WriteInt64(int64(v))
	return nil
}

func (c *binaryCodecImpl) encodeEvent(w *wire.Writer, e Event) error {
	writeCode(w, CodeEvent)
	w.WriteString(e.Types)

	names := make([]string, 0, len(e.Props))
	for name := range e.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	w.WriteInt32(int32(len(names)))
	for _, name := range names {
		w.WriteString(name)
		if err := c.Encode(w, e.Props[name]); err != nil {
			return fmt.Errorf("event property %q: %w", name, err)
		}
	}
	return nil
}

func (c *binaryCodecImpl) encodeStringMap(w *wire.Writer, m map[string]any) error {
	if m == nil {
		writeCode(w, CodeNull)
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeCode(w, CodeMap)
	w.WriteInt32(int32(len(keys)))
	for _, k := range keys {
		writeCode(w, CodeString)
		w.WriteString(k)
		if err := c.Encode(w, m[k]); err != nil {
			return fmt.Errorf("map entry %q: %w", k, err)
		}
	}
	return nil
}

// encodeReflect handles registered values, errors, typed slices and maps
func (c *binaryCodecImpl) encodeReflect(w *wire.Writer, v any) error {
	rv := reflect.ValueOf(v)
	t := rv.Type()

	if t.Kind() == reflect.Pointer {
		if name, ok := c.byType.Load(t.Elem()); ok {
			if rv.IsNil() {
				writeCode(w, CodeNull)
				return nil
			}
			return c.encodeValue(w, name, rv.Elem().Interface())
		}
	}
	if name, ok := c.byType.Load(t); ok {
		return c.encodeValue(w, name, v)
	}

	if err, ok := v.(error); ok {
		if t.Kind() == reflect.Pointer && rv.IsNil() {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeException)
		w.WriteString(t.String())
		w.WriteString(err.Error())
		return nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && rv.IsNil() {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeSequence)
		_ = w.WriteByte(seqArray)
		w.WriteInt32(int32(rv.Len()))
		writeType(w, c.staticType(t.Elem()))
		for i := 0; i < rv.Len(); i++ {
			if err := c.Encode(w, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if rv.IsNil() {
			writeCode(w, CodeNull)
			return nil
		}
		writeCode(w, CodeMap)
		w.WriteInt32(int32(rv.Len()))
		iter := rv.MapRange()
		for iter.Next() {
			if err := c.Encode(w, iter.Key().Interface()); err != nil {
				return err
			}
			if err := c.Encode(w, iter.Value().Interface()); err != nil {
				return err
			}
		}
		return nil

	case reflect.Pointer:
		if rv.IsNil() {
			writeCode(w, CodeNull)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func (c *binaryCodecImpl) encodeValue(w *wire.Writer, name string, v any) error {
	body, err := c.objects.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value %q with %s: %w", name, c.objects.Name(), err)
	}
	writeCode(w, CodeValue)
	w.WriteString(name)
	w.WriteBytes(body)
	return nil
}

// staticType returns the element type announced for typed sequences, nil if untyped
func (c *binaryCodecImpl) staticType(t reflect.Type) *TypeRef {
	if name, ok := c.byType.Load(t); ok {
		return &TypeRef{Code: CodeValue, Name: name}
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Uint8:
		return &TypeRef{Code: CodeByte}
	case reflect.Int16:
		return &TypeRef{Code: CodeShort}
	case reflect.Int32, reflect.Uint16:
		return &TypeRef{Code: CodeInt}
	case reflect.Int64, reflect.Int, reflect.Uint32:
		return &TypeRef{Code: CodeLong}
	case reflect.Float32:
		return &TypeRef{Code: CodeFloat}
	case reflect.Float64:
		return &TypeRef{Code: CodeDouble}
	case reflect.Bool:
		return &TypeRef{Code: CodeBoolean}
	case reflect.String:
		return &TypeRef{Code: CodeString}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &TypeRef{Code: CodeBinary}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods (decoding)
// --------------------------------------------------------------------------

func (c *binaryCodecImpl) decode(r *wire.Reader, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch code := TypeCode(b); code {
	case CodeNull:
		return nil, nil
	case CodeVoid:
		return VoidValue, nil
	case CodeByte:
		v, err := r.ReadByte()
		return int8(v), err
	case CodeShort:
		return r.ReadInt16()
	case CodeInt:
		return r.ReadInt32()
	case CodeLong:
		return r.ReadInt64()
	case CodeFloat:
		return r.ReadFloat32()
	case CodeDouble:
		return r.ReadFloat64()
	case CodeBoolean:
		return r.ReadBool()
	case CodeString:
		return r.ReadString()
	case CodeBinary, CodeByteBuffer:
		return r.ReadBytes()
	case CodeStream:
		id, err := r.ReadInt32()
		return StreamRef{ID: id}, err
	case CodeEnum:
		var e Enum
		if e.Type, err = r.ReadString(); err != nil {
			return nil, err
		}
		e.Ordinal, err = r.ReadInt32()
		return e, err
	case CodeRemote:
		return readRemote(r)
	case CodeException:
		var e Exception
		if e.TypeName, err = r.ReadString(); err != nil {
			return nil, err
		}
		if e.Message, err = r.ReadString(); err != nil {
			return nil, err
		}
		return &e, nil
	case CodeType:
		t, err := readType(r, depth+1)
		if err != nil || t == nil {
			return nil, err
		}
		return t, nil
	case CodeValue:
		return c.decodeValue(r)
	case CodeEvent:
		return c.decodeEvent(r, depth)
	case CodeSequence:
		return c.decodeSequence(r, depth)
	case CodeMap:
		return c.decodeMap(r, depth)
	case CodeReference:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, code)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCode, b)
	}
}

func readRemote(r *wire.Reader) (any, error) {
	names, err := r.ReadNullableString()
	if err != nil || names == nil {
		return nil, err
	}
	ref := RemoteRef{TypeNames: *names}
	if ref.PeerID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if ref.Path, err = r.ReadString(); err != nil {
		return nil, err
	}
	return ref, nil
}

// readType returns nil for a NULL type
func readType(r *wire.Reader, depth int) (*TypeRef, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("type nested deeper than %d levels", maxDepth)
	}
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	code := TypeCode(b)
	if code == CodeNull {
		return nil, nil
	}
	if _, ok := codeNames[code]; !ok {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCode, b)
	}

	t := &TypeRef{Code: code}
	switch code {
	case CodeValue, CodeRemote, CodeEvent, CodeException, CodeEnum:
		t.Name, err = r.ReadString()
	case CodeSequence:
		t.Elem, err = readType(r, depth+1)
	}
	return t, err
}

func (c *binaryCodecImpl) decodeValue(r *wire.Reader) (any, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	t, ok := c.byName.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: value %q is not registered", ErrUnsupportedType, name)
	}
	ptr := reflect.New(t)
	if err := c.objects.Unmarshal(body, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("failed to decode value %q with %s: %w", name, c.objects.Name(), err)
	}
	return ptr.Elem().Interface(), nil
}

func (c *binaryCodecImpl) decodeEvent(r *wire.Reader, depth int) (any, error) {
	var e Event
	var err error
	if e.Types, err = r.ReadString(); err != nil {
		return nil, err
	}
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	e.Props = make(map[string]any, n)
	for i := 0; i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if e.Props[name], err = c.decode(r, depth+1); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (c *binaryCodecImpl) decodeSequence(r *wire.Reader, depth int) (any, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if kind == seqNull {
		return nil, nil
	}
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	elemType, err := readType(r, depth+1)
	if err != nil {
		return nil, err
	}

	elems := make([]any, n)
	for i := range elems {
		if elems[i], err = c.decode(r, depth+1); err != nil {
			return nil, err
		}
	}

	goType := c.goType(elemType)
	if goType == nil {
		return elems, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(goType), n, n)
	for i, elem := range elems {
		if elem == nil {
			continue
		}
		ev := reflect.ValueOf(elem)
		if !ev.Type().AssignableTo(goType) {
			return nil, fmt.Errorf("sequence of %s holds %s at index %d", elemType.Code, ev.Type(), i)
		}
		out.Index(i).Set(ev)
	}
	return out.Interface(), nil
}

// goType maps a sequence element type to the go type of decoded elements, nil for []any
func (c *binaryCodecImpl) goType(t *TypeRef) reflect.Type {
	if t == nil {
		return nil
	}
	switch t.Code {
	case CodeByte:
		return reflect.TypeOf(int8(0))
	case CodeShort:
		return reflect.TypeOf(int16(0))
	case CodeInt:
		return reflect.TypeOf(int32(0))
	case CodeLong:
		return reflect.TypeOf(int64(0))
	case CodeFloat:
		return reflect.TypeOf(float32(0))
	case CodeDouble:
		return reflect.TypeOf(float64(0))
	case CodeBoolean:
		return reflect.TypeOf(false)
	case CodeString:
		return reflect.TypeOf("")
	case CodeBinary:
		return reflect.TypeOf([]byte(nil))
	case CodeValue:
		if gt, ok := c.byName.Load(t.Name); ok {
			return gt
		}
	}
	return nil
}

func (c *binaryCodecImpl) decodeMap(r *wire.Reader, depth int) (any, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == wire.NullLength {
		return nil, nil
	}
	if n < 0 || int(n)*2 > r.Remaining() {
		return nil, fmt.Errorf("invalid map size %d with %d bytes left", n, r.Remaining())
	}

	keys := make([]any, n)
	values := make([]any, n)
	stringKeys := true
	for i := range keys {
		if keys[i], err = c.decode(r, depth+1); err != nil {
			return nil, err
		}
		if values[i], err = c.decode(r, depth+1); err != nil {
			return nil, err
		}
		if _, ok := keys[i].(string); !ok {
			stringKeys = false
		}
	}

	if stringKeys {
		m := make(map[string]any, n)
		for i, k := range keys {
			m[k.(string)] = values[i]
		}
		return m, nil
	}
	m := make(map[any]any, n)
	for i, k := range keys {
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, fmt.Errorf("map key of type %T is not comparable", k)
		}
		m[k] = values[i]
	}
	return m, nil
}

// readCount reads an element count. Every element takes at least one byte.
func readCount(r *wire.Reader) (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) > r.Remaining() {
		return 0, fmt.Errorf("invalid element count %d with %d bytes left", n, r.Remaining())
	}
	return int(n), nil
}
