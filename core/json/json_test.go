package json

import (
	"strings"
	"testing"
)

func parseOne(t *testing.T, input string) Value {
	t.Helper()
	p := NewParser(DefaultParserConfig())
	v, err := p.Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	return v
}

func compact(v Value) string {
	return string(NewSerializer(DefaultSerializerConfig()).Serialize(v))
}

func TestParseAndSerializeCompact(t *testing.T) {
	v := parseOne(t, `{"a": 1, "b": [true, null, "x"]}`)

	got := compact(v)
	want := `{"a":1,"b":[true,null,"x"]}`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestObjectInsertionOrderPreserved(t *testing.T) {
	v := parseOne(t, `{"z":1,"a":2,"m":3}`)
	if got := compact(v); got != `{"z":1,"a":2,"m":3}` {
		t.Errorf("Insertion order not preserved: %s", got)
	}
}

func TestObjectAccessDistinguishesMissingFromNull(t *testing.T) {
	v := parseOne(t, `{"present":null}`)

	if pv, ok := v.Get("present"); !ok || !pv.IsNull() {
		t.Error("present-null key should be found and null")
	}
	if _, ok := v.Get("absent"); ok {
		t.Error("absent key should not be found")
	}
}

func TestArrayIndexBoundsChecked(t *testing.T) {
	v := parseOne(t, `[10,20]`)

	if item, ok := v.Index(1); !ok || item.Number() != 20 {
		t.Error("Index 1 should return 20")
	}
	if _, ok := v.Index(2); ok {
		t.Error("Index 2 should be out of bounds")
	}
	if _, ok := v.Index(-1); ok {
		t.Error("Negative index should be out of bounds")
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`true`,
		`-12.5`,
		`"hello\nworld"`,
		`[1,[2,[3]],{"k":"v"}]`,
		`{"a":1,"b":[true,null,"x"],"c":{"d":0.25}}`,
	}
	for _, input := range inputs {
		v := parseOne(t, input)
		again := parseOne(t, compact(v))
		if !Equal(v, again) {
			t.Errorf("Round trip not structural for %s", input)
		}
	}
}

func TestSerializerIdempotence(t *testing.T) {
	input := `{"a":[1,2.5,"s"],"b":{"c":null,"d":false}}`
	once := compact(parseOne(t, input))
	twice := compact(parseOne(t, once))
	if once != twice {
		t.Errorf("Compact serialization not idempotent: %s vs %s", once, twice)
	}
}

func TestComments(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.AllowComments = true
	p := NewParser(cfg)

	v, err := p.Parse([]byte("{ // line comment\n \"a\": /* inline */ 1 }"))
	if err != nil {
		t.Fatalf("Comments should be accepted: %v", err)
	}
	if n, _ := v.Get("a"); n.Number() != 1 {
		t.Error("Value after comment lost")
	}

	strict := NewParser(DefaultParserConfig())
	if _, err := strict.Parse([]byte("// nope\n1")); err == nil {
		t.Error("Comments should be rejected by default")
	}
}

func TestTrailingCommas(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.AllowTrailingCommas = true
	p := NewParser(cfg)

	if _, err := p.Parse([]byte(`{"a":1,}`)); err != nil {
		t.Errorf("Trailing comma in object should be accepted: %v", err)
	}
	if _, err := p.Parse([]byte(`[1,2,]`)); err != nil {
		t.Errorf("Trailing comma in array should be accepted: %v", err)
	}

	strict := NewParser(DefaultParserConfig())
	if _, err := strict.Parse([]byte(`[1,2,]`)); err == nil {
		t.Error("Trailing comma should be rejected by default")
	}
}

func TestStrictModeTrailingData(t *testing.T) {
	strict := NewParser(DefaultParserConfig())
	if _, err := strict.Parse([]byte(`{"a":1} garbage`)); err == nil {
		t.Error("Trailing data should fail in strict mode")
	}

	cfg := DefaultParserConfig()
	cfg.StrictMode = false
	lenient := NewParser(cfg)
	if _, err := lenient.Parse([]byte(`{"a":1} garbage`)); err != nil {
		t.Errorf("Trailing data should pass with strict mode off: %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	deep := strings.Repeat("[", 101) + strings.Repeat("]", 101)
	p := NewParser(DefaultParserConfig())
	if _, err := p.Parse([]byte(deep)); err == nil {
		t.Error("Depth 101 should exceed the default cap")
	}

	ok := strings.Repeat("[", 100) + strings.Repeat("]", 100)
	if _, err := p.Parse([]byte(ok)); err != nil {
		t.Errorf("Depth 100 should be accepted: %v", err)
	}
}

func TestMaxStringLength(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.MaxStringLength = 4
	p := NewParser(cfg)

	if _, err := p.Parse([]byte(`"12345"`)); err == nil {
		t.Error("String over the cap should fail")
	}
	if _, err := p.Parse([]byte(`"1234"`)); err != nil {
		t.Errorf("String at the cap should pass: %v", err)
	}
}

func TestStringEscapes(t *testing.T) {
	v := parseOne(t, `"\" \\ \/ \b \f \n \r \t A"`)
	want := "\" \\ / \b \f \n \r \t A"
	if v.Str() != want {
		t.Errorf("Expected %q, got %q", want, v.Str())
	}
}

func TestSurrogatePairAssembly(t *testing.T) {
	v := parseOne(t, `"\ud83d\ude00"`)
	if v.Str() != "\U0001F600" {
		t.Errorf("Surrogate pair should assemble to U+1F600, got %q", v.Str())
	}

	lone := parseOne(t, `"\ud83d"`)
	if lone.Str() != "�" {
		t.Errorf("Lone surrogate should decode to replacement char, got %q", lone.Str())
	}
}

func TestInvalidInputs(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	for _, input := range []string{
		``, `{`, `[1,`, `{"a"}`, `{"a":}`, `tru`, `01`, `1.`, `1e`, `"unterminated`,
		"\"raw\x01control\"", `{'a':1}`,
	} {
		if _, err := p.Parse([]byte(input)); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
	if got := p.Stats().ParseErrors.Load(); got == 0 {
		t.Error("Parse errors should be counted")
	}
}

func TestNumberForms(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`0`, 0},
		{`-0`, 0},
		{`42`, 42},
		{`-12.5`, -12.5},
		{`1e3`, 1000},
		{`2.5E-1`, 0.25},
	}
	for _, tc := range cases {
		v := parseOne(t, tc.in)
		if v.Number() != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.in, tc.want, v.Number())
		}
	}
}

func TestNumberSerialization(t *testing.T) {
	cases := []struct {
		in   Value
		want string
	}{
		{Number(1), "1"},
		{Number(-3), "-3"},
		{Number(2.5), "2.5"},
		{Number(0.1), "0.1"},
		{Number(1e21), "1e+21"},
	}
	for _, tc := range cases {
		if got := compact(tc.in); got != tc.want {
			t.Errorf("Expected %s, got %s", tc.want, got)
		}
	}
}

func TestPrettyPrint(t *testing.T) {
	cfg := DefaultSerializerConfig()
	cfg.PrettyPrint = true
	s := NewSerializer(cfg)

	v := parseOne(t, `{"a":1,"b":[true]}`)
	got := string(s.Serialize(v))
	want := "{\n  \"a\": 1,\n  \"b\": [\n    true\n  ]\n}"
	if got != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, got)
	}

	// Empty containers stay on one line.
	if got := string(s.Serialize(parseOne(t, `{"e":[],"o":{}}`))); !strings.Contains(got, "[]") || !strings.Contains(got, "{}") {
		t.Errorf("Empty containers should not be broken: %s", got)
	}
}

func TestSortKeys(t *testing.T) {
	cfg := DefaultSerializerConfig()
	cfg.SortKeys = true
	s := NewSerializer(cfg)

	v := parseOne(t, `{"z":1,"a":2}`)
	if got := string(s.Serialize(v)); got != `{"a":2,"z":1}` {
		t.Errorf("Keys not sorted: %s", got)
	}
}

func TestEnsureASCII(t *testing.T) {
	cfg := DefaultSerializerConfig()
	cfg.EnsureASCII = true
	s := NewSerializer(cfg)

	if got := string(s.Serialize(String("héllo"))); got != `"h\u00e9llo"` {
		t.Errorf("Non-ASCII should escape: %s", got)
	}
	if got := string(s.Serialize(String("\U0001F600"))); got != `"\ud83d\ude00"` {
		t.Errorf("Astral rune should escape as surrogate pair: %s", got)
	}

	// EscapeUnicode is an alias.
	alias := NewSerializer(SerializerConfig{EscapeUnicode: true})
	if got := string(alias.Serialize(String("é"))); got != `"\u00e9"` {
		t.Errorf("EscapeUnicode alias broken: %s", got)
	}
}

func TestControlCharacterEscapes(t *testing.T) {
	if got := compact(String("a\x01b")); got != `"a\u0001b"` {
		t.Errorf("Control byte should escape as \\u0001: %s", got)
	}
	if got := compact(String("line\nbreak")); got != `"line\nbreak"` {
		t.Errorf("Newline should use the short escape: %s", got)
	}
}

func TestStreamParser(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	sp := NewStreamParser(p)

	doc := `{"chunked": [1, 2, 3], "ok": true}`
	for i := 0; i < len(doc); i += 7 {
		end := i + 7
		if end > len(doc) {
			end = len(doc)
		}
		if !sp.Feed([]byte(doc[i:end])) {
			t.Fatal("Feed rejected a chunk")
		}
	}

	v, err := sp.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if ok, _ := v.Get("ok"); !ok.Bool() {
		t.Error("Streamed document lost data")
	}

	if sp.Feed([]byte("x")) {
		t.Error("Feed after Finish should be rejected")
	}
	sp.Reset()
	if sp.Buffered() != 0 {
		t.Error("Reset should clear the buffer")
	}
}

func TestStats(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	s := NewSerializer(DefaultSerializerConfig())

	v, _ := p.Parse([]byte(`{"a":1}`))
	out := s.Serialize(v)

	if got := p.Stats().DocumentsParsed.Load(); got != 1 {
		t.Errorf("Expected 1 document parsed, got %d", got)
	}
	if got := p.Stats().BytesParsed.Load(); got != 7 {
		t.Errorf("Expected 7 bytes parsed, got %d", got)
	}
	if got := s.Stats().DocumentsSerialized.Load(); got != 1 {
		t.Errorf("Expected 1 document serialized, got %d", got)
	}
	if got := s.Stats().BytesSerialized.Load(); got != uint64(len(out)) {
		t.Errorf("Expected %d bytes serialized, got %d", len(out), got)
	}
}

func BenchmarkParse(b *testing.B) {
	p := NewParser(DefaultParserConfig())
	data := []byte(`{"users":[{"id":1,"name":"alice","tags":["a","b"]},{"id":2,"name":"bob","tags":[]}],"total":2}`)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Parse(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSerialize(b *testing.B) {
	p := NewParser(DefaultParserConfig())
	v, _ := p.Parse([]byte(`{"users":[{"id":1,"name":"alice"},{"id":2,"name":"bob"}],"total":2}`))
	s := NewSerializer(DefaultSerializerConfig())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Serialize(v)
	}
}
