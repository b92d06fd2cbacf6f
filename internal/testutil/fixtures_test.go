package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSampleFixtures(t *testing.T) {
	GenerateBarcodeImages(t)
	CreateSampleFixtures(t)

	fixturesDir := GetFixturesDir(t)
	assert.True(t, DirExists(fixturesDir))

	assert.True(t, FileExists(fixturesDir+"/qr_url.json"))
	assert.True(t, FileExists(fixturesDir+"/code128_plain.json"))
	assert.True(t, FileExists(fixturesDir+"/ean13_retail.json"))
	assert.True(t, FileExists(fixturesDir+"/qr_rot45.json"))
}

func TestLoadFixture(t *testing.T) {
	GenerateBarcodeImages(t)
	CreateSampleFixtures(t)

	fixture := LoadFixture(t, "qr_url")
	assert.Equal(t, "qr_url", fixture.Name)
	assert.Equal(t, "images/clean/qr_url.png", fixture.InputFile)
	assert.True(t, fixture.Expected.Decodable)
	assert.Equal(t, "qr", fixture.Expected.Format)
	assert.Equal(t, "https://example.com/item/42", fixture.Expected.Payload)
}

func TestSaveAndLoadFixture(t *testing.T) {
	fixture := TestFixture{
		Name:        "test_fixture",
		Description: "Fixture round trip for unit testing",
		InputFile:   "test/input.png",
		Expected: DecodeExpectation{
			Decodable: true,
			Format:    "code128",
			Payload:   "ROUND-TRIP",
		},
	}

	SaveFixture(t, fixture)

	loaded := LoadFixture(t, "test_fixture")
	assert.Equal(t, fixture.Name, loaded.Name)
	assert.Equal(t, fixture.Description, loaded.Description)
	assert.Equal(t, fixture.InputFile, loaded.InputFile)
	assert.Equal(t, fixture.Expected, loaded.Expected)
}

func TestUndecodableFixture(t *testing.T) {
	var rot45 *TestFixture
	for _, fixture := range SampleFixtures() {
		if fixture.Name == "qr_rot45" {
			f := fixture
			rot45 = &f
			break
		}
	}
	require.NotNil(t, rot45)
	assert.False(t, rot45.Expected.Decodable)
	assert.Empty(t, rot45.Expected.Payload)
}

func TestValidateFixture(t *testing.T) {
	GenerateBarcodeImages(t)
	CreateSampleFixtures(t)

	fixture := LoadFixture(t, "qr_url")

	require.NotPanics(t, func() {
		ValidateFixture(t, fixture)
	})
}

func TestGetFixtureInputPath(t *testing.T) {
	fixture := TestFixture{
		InputFile: "images/clean/test.png",
	}

	path := GetFixtureInputPath(t, fixture)
	assert.Contains(t, path, "testdata/images/clean/test.png")
}
