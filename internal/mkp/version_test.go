package mkp

import (
	"slices"
	"testing"
)

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "1.2.3", "1.2.3", 0},
		{"build metadata ignored", "1.2.3+build.7", "1.2.3+other", 0},
		{"build metadata vs plain", "1.2.3+build.7", "1.2.3", 0},
		{"leading zeros are numeric", "1.02", "1.2", 0},
		{"numeric by value", "1.10", "1.9", 1},
		{"date-like versions", "2022.09.03", "2022.8.21", 1},
		{"shorter release first", "1.2", "1.2.0", -1},
		{"prerelease before release", "1.2.3-alpha", "1.2.3", -1},
		{"numeric prerelease before release", "1.2.3-1", "1.2.3", -1},
		{"prerelease ordering", "1.2.3-alpha", "1.2.3-beta", -1},
		{"prerelease numeric value", "1.0.0-rc.2", "1.0.0-rc.10", -1},
		{"numeric before non-numeric in release", "0.1", "wurstsalat", -1},
		{"numeric before non-numeric in prerelease", "1.0.0-1", "1.0.0-alpha", -1},
		{"prerelease with build metadata", "1.0.0-alpha+001", "1.0.0-alpha", 0},
		{"newer release beats prerelease of newer", "1.2.4-alpha", "1.2.3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PackageVersion(tt.a).Compare(PackageVersion(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// antisymmetry
			if back := PackageVersion(tt.b).Compare(PackageVersion(tt.a)); back != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, back, -tt.want)
			}
		})
	}
}

func TestVersionPrereleaseAlwaysSortsFirst(t *testing.T) {
	plains := []string{"1", "1.2.3", "2022.01.01", "0.0.1", "abc", "1.x.3"}
	decorations := []string{"alpha", "1", "rc.1", "0", "x-y", "beta.11"}

	for _, plain := range plains {
		for _, pre := range decorations {
			decorated := PackageVersion(plain + "-" + pre)
			if !decorated.Less(PackageVersion(plain)) {
				t.Errorf("expected %q < %q", decorated, plain)
			}
		}
	}
}

func TestVersionOrderIsStrictTotal(t *testing.T) {
	versions := []PackageVersion{
		"1.0", "1.0.0", "1.0.0-alpha", "1.0.0-alpha.1", "1.0.0-1", "1.0.0-beta",
		"1.0.0+meta", "2", "10", "1.a", "a.1", "abc", "", "1..2", "1.0-",
	}

	for _, a := range versions {
		if a.Compare(a) != 0 {
			t.Errorf("%q is not equal to itself", a)
		}
		for _, b := range versions {
			ab, ba := a.Compare(b), b.Compare(a)
			if ab != -ba {
				t.Errorf("antisymmetry violated for %q, %q: %d, %d", a, b, ab, ba)
			}
			for _, c := range versions {
				if ab < 0 && b.Compare(c) < 0 && a.Compare(c) >= 0 {
					t.Errorf("transitivity violated: %q < %q < %q", a, b, c)
				}
			}
		}
	}
}

func TestSortVersionsDescending(t *testing.T) {
	versions := []PackageVersion{"1.0.0", "1.2.0", "1.2.0-rc1", "0.9", "1.10.0"}
	SortVersionsDescending(versions)

	want := []PackageVersion{"1.10.0", "1.2.0", "1.2.0-rc1", "1.0.0", "0.9"}
	if !slices.Equal(versions, want) {
		t.Errorf("SortVersionsDescending() = %v, want %v", versions, want)
	}
}

func TestPackageVersionValidate(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0", false},
		{"1.0-beta+x", false},
		{"", true},
		{"../1.0", true},
		{"1/0", true},
	}

	for _, tt := range tests {
		_, err := NewPackageVersion(tt.version)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewPackageVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
		}
	}
}

func TestSortKeyCached(t *testing.T) {
	v := PackageVersion("7.3.1-rc.2+cache")
	if _, ok := sortKeys.Load(v); ok {
		t.Fatalf("%s cached before first use", v)
	}

	first := v.SortKey()
	cached, ok := sortKeys.Load(v)
	if !ok {
		t.Fatalf("%s not cached after SortKey()", v)
	}
	if cached.(SortKey).Compare(first) != 0 {
		t.Error("cached key differs from the returned key")
	}
	if v.SortKey().Compare(parseSortKey(string(v))) != 0 {
		t.Error("cached key differs from a fresh parse")
	}
}
