package passwords

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestFromPlainText_SamePasswordDiffers(t *testing.T) {
	st1, err := FromPlainText("123")
	if err != nil {
		t.Fatalf("FromPlainText() error = %v", err)
	}
	st2, err := FromPlainText("123")
	if err != nil {
		t.Fatalf("FromPlainText() error = %v", err)
	}

	if st1.String() == st2.String() {
		t.Fatal("two stored passwords for the same plaintext are identical")
	}
	if bytes.Equal(st1.Salt(), st2.Salt()) {
		t.Error("salts are identical")
	}

	p1, ok := TryParse(st1.String())
	if !ok {
		t.Fatal("TryParse(st1) failed")
	}
	p2, ok := TryParse(st2.String())
	if !ok {
		t.Fatal("TryParse(st2) failed")
	}

	if !p1.Check("123") {
		t.Error("Check(st1, \"123\") = false, want true")
	}
	if !p2.Check("123") {
		t.Error("Check(st2, \"123\") = false, want true")
	}
	if p2.Check("Wrong password") {
		t.Error("Check(st2, \"Wrong password\") = true, want false")
	}
}

func TestFromPlainText_Shape(t *testing.T) {
	p, err := FromPlainText("hunter2")
	if err != nil {
		t.Fatalf("FromPlainText() error = %v", err)
	}

	if p.Iterations() != DefaultIterations {
		t.Errorf("Iterations() = %d, want %d", p.Iterations(), DefaultIterations)
	}
	if len(p.Salt()) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(p.Salt()), SaltSize)
	}
	if len(p.Key()) != KeySize {
		t.Errorf("key length = %d, want %d", len(p.Key()), KeySize)
	}

	fields := strings.Split(p.String(), ";")
	if len(fields) != 3 {
		t.Fatalf("String() has %d fields, want 3", len(fields))
	}
	if fields[0] != "10000" {
		t.Errorf("iterations field = %q, want 10000", fields[0])
	}
	if len(fields[1]) != 2*SaltSize || len(fields[2]) != 2*KeySize {
		t.Errorf("hex field lengths = %d, %d", len(fields[1]), len(fields[2]))
	}
	if strings.ToLower(p.String()) != p.String() {
		t.Error("String() is not lowercase")
	}
}

func TestCheck_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		candidate string
		want      bool
	}{
		{"empty matches empty", "", "", true},
		{"empty rejects non-empty", "", "x", false},
		{"non-empty rejects empty", "x", "", false},
		{"case sensitive", "Secret", "secret", false},
		{"unicode", "contraseña😀", "contraseña😀", true},
		{"trailing space", "abc", "abc ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromPlainText(tt.password)
			if err != nil {
				t.Fatalf("FromPlainText() error = %v", err)
			}
			if got := p.Check(tt.candidate); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestCheck_UsesStoredIterations(t *testing.T) {
	salt := bytes.Repeat([]byte{0x11}, SaltSize)
	key := deriveKey("pw", salt, 3)

	p := New(3, salt, key)
	if !p.Check("pw") {
		t.Error("Check() with 3 stored iterations = false, want true")
	}

	other := New(4, salt, key)
	if other.Check("pw") {
		t.Error("Check() with different iteration count = true, want false")
	}
}

func TestCheck_ZeroValue(t *testing.T) {
	var p StoredPassword
	if p.Check("") {
		t.Error("zero StoredPassword should never match")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"10000;" + strings.Repeat("ab", 32) + ";" + strings.Repeat("01", 32),
		"1;00;ff",
		"0;;",
	}
	for _, in := range inputs {
		p, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", in, err)
		}
		if p.String() != in {
			t.Errorf("round trip = %q, want %q", p.String(), in)
		}
	}

	original, err := FromPlainText("round trip")
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.String() != original.String() {
		t.Error("serialize(deserialize(s)) != s")
	}
	if !parsed.Check("round trip") {
		t.Error("parsed value does not check against original password")
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"one field", "10000"},
		{"two fields", "10000;abcd"},
		{"four fields", "10000;ab;cd;ef"},
		{"non numeric iterations", "ten;ab;cd"},
		{"negative iterations", "-1;ab;cd"},
		{"signed iterations", "+5;ab;cd"},
		{"padded iterations", "010;ab;cd"},
		{"overflow iterations", "99999999999999999999999;ab;cd"},
		{"non hex salt", "10;zz;cd"},
		{"odd salt", "10;abc;cd"},
		{"non hex key", "10;ab;c!"},
		{"odd key", "10;ab;c"},
		{"uppercase salt", "10;ABCD;ef01"},
		{"uppercase key", "10;abcd;EF01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, ErrMalformedCredential) {
				t.Errorf("Parse(%q): expected ErrMalformedCredential, got %v", tt.in, err)
			}
			if _, ok := TryParse(tt.in); ok {
				t.Errorf("TryParse(%q) = ok, want failure", tt.in)
			}
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	salt := []byte{1, 2}
	key := []byte{3, 4}
	p := New(1, salt, key)

	salt[0] = 9
	key[0] = 9
	if p.Salt()[0] != 1 || p.Key()[0] != 3 {
		t.Error("New did not copy its inputs")
	}

	p.Salt()[1] = 9
	if p.Salt()[1] != 2 {
		t.Error("Salt() exposes internal state")
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pw := fmt.Sprintf("pw-%d", i)
			p, err := FromPlainText(pw)
			if err != nil {
				errs <- err
				return
			}
			if !p.Check(pw) {
				errs <- fmt.Errorf("check failed for %s", pw)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func ExampleFromPlainText() {
	stored, err := FromPlainText("correct horse")
	if err != nil {
		panic(err)
	}

	parsed, ok := TryParse(stored.String())
	fmt.Println(ok, parsed.Check("correct horse"), parsed.Check("battery staple"))
	// Output: true true false
}
