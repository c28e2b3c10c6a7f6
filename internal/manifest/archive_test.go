package manifest

import "testing"

func TestArchiveKindForDeclared(t *testing.T) {
	a := &Artifact{Target: "t", Archive: "tar.gz", URL: "https://example.com/x"}
	kind, err := a.ArchiveKindFor()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != ArchiveTarGz {
		t.Fatalf("expected tar.gz, got %s", kind)
	}
}

func TestArchiveKindForInferredBin(t *testing.T) {
	a := &Artifact{Target: "t", URL: "https://example.com/dist/myapp"}
	kind, err := a.ArchiveKindFor()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != ArchiveBin {
		t.Fatalf("expected bin, got %s", kind)
	}
}

func TestArchiveKindForRejectsDebRpm(t *testing.T) {
	for _, url := range []string{
		"https://example.com/app.deb",
		"https://example.com/app.rpm",
	} {
		a := &Artifact{Target: "t", URL: url}
		if _, err := a.ArchiveKindFor(); err == nil {
			t.Fatalf("expected error inferring kind for %s", url)
		}
	}
}

func TestArchiveKindForInferredSuffixes(t *testing.T) {
	cases := map[string]ArchiveKind{
		"https://example.com/a.zip":      ArchiveZip,
		"https://example.com/a.tar.gz":   ArchiveTarGz,
		"https://example.com/a.tgz":      ArchiveTarGz,
		"https://example.com/a.tar.zst":  ArchiveTarZst,
		"https://example.com/a.msi":      ArchiveMsi,
		"https://example.com/a.dmg":      ArchiveDmg,
		"https://example.com/a.AppImage": ArchiveAppImage,
		"https://example.com/a.exe":      ArchiveExe,
		"https://example.com/a.pkg":      ArchivePkg,
		"https://example.com/a.msix":     ArchiveMsix,
		"https://example.com/a.appx":     ArchiveAppx,
	}
	for url, want := range cases {
		a := &Artifact{Target: "t", URL: url}
		got, err := a.ArchiveKindFor()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", url, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", url, want, got)
		}
	}
}
