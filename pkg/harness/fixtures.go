package harness

import (
	"bytes"
	"crypto/rand"
	"embed"
	"fmt"
	"image/png"
	"sync"
)

//go:embed fixtures/test_pattern.png
var fixturesFS embed.FS

const testPatternName = "fixtures/test_pattern.png"

var testPattern = sync.OnceValues(func() ([]byte, error) {
	data, err := fixturesFS.ReadFile(testPatternName)
	if err != nil {
		return nil, err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("fixture %s is not a valid png: %w", testPatternName, err)
	}
	return data, nil
})

// Fixtures is the binary input shared by every scenario of a run.
type Fixtures struct {
	TestPattern []byte
}

// LoadFixtures reads the embedded fixtures. They are decoded once per process.
func LoadFixtures() (Fixtures, error) {
	data, err := testPattern()
	if err != nil {
		return Fixtures{}, err
	}
	return Fixtures{TestPattern: data}, nil
}

// RandomBytes returns n bytes that will not compress.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return buf
}
