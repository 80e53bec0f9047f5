package graph

import (
	"math/rand"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"src/components/Button.tsx", TypeComponent},
		{"/src/Components/Nav/Bar.tsx", TypeComponent},
		{"src/pages/index.tsx", TypePage},
		{"app/dashboard/page.tsx", TypePage},
		{"src/store/session.ts", TypeStore},
		{"src/state/zustandSlice.ts", TypeStore},
		{"src/reduxHelpers.ts", TypeStore},
		{"src/api/client.ts", TypeAPI},
		{"server/routes.py", TypeAPI},
		{"backend/user_service.py", TypeAPI},
		{"src/utils/format.ts", TypeUtil},
		{"src/lib/date.ts", TypeUtil},
		{"src/helpers/math.ts", TypeUtil},
		{"next.config.js", TypeConfig},
		{"src/schema.ts", TypeSchema},
		{"src/types/index.ts", TypeSchema},
		{"src/IUserInterface.ts", TypeSchema},
		{"main.go", TypeDefault},
		{"", TypeDefault},
		// Order matters: components wins over everything after it.
		{"src/components/api/Widget.tsx", TypeComponent},
		{`src\components\Win.tsx`, TypeComponent},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	known := make(map[FileType]bool)
	for _, ft := range FileTypes {
		known[ft] = true
	}

	r := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz/._-\\ COMPONENTSé世\x00")
	for i := 0; i < 2000; i++ {
		n := r.Intn(40)
		buf := make([]rune, n)
		for j := range buf {
			buf[j] = alphabet[r.Intn(len(alphabet))]
		}
		got := Classify(string(buf))
		if !known[got] {
			t.Fatalf("Classify(%q) = %q, not one of the eight file types", string(buf), got)
		}
	}

	// Invalid UTF-8 must also classify.
	if got := Classify(string([]byte{0xff, 0xfe, '/'})); !known[got] {
		t.Errorf("Classify(invalid utf8) = %q", got)
	}
}

func TestResolveType(t *testing.T) {
	tests := []struct {
		name       string
		serverType string
		path       string
		entity     Entity
		want       FileType
	}{
		{"recognized server type wins", "store", "src/components/X.tsx", EntityFile, TypeStore},
		{"server type is case-insensitive", "  API ", "main.go", EntityFile, TypeAPI},
		{"unknown server type falls back to path", "widget", "src/components/X.tsx", EntityFile, TypeComponent},
		{"missing server type falls back to path", "", "src/lib/x.ts", EntityFile, TypeUtil},
		{"module type on a file node is ignored", "module", "src/lib/x.ts", EntityFile, TypeUtil},
		{"module entity always resolves to module", "component", "src/components/X.tsx", EntityModule, TypeModule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveType(tt.serverType, tt.path, tt.entity); got != tt.want {
				t.Errorf("ResolveType() = %q, want %q", got, tt.want)
			}
		})
	}
}
