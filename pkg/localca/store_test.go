package localca

import (
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/jeremyhahn/go-localca/pkg/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{
		Home:    "localca-test",
		KeySize: 1024,
		Identity: Identity{
			Name:  "ca",
			Valid: 10,
			Subject: Subject{
				CommonName:   "Test Root CA",
				Organization: "Example, Inc.",
				Country:      "US",
				Province:     "California",
				Locality:     "San Francisco",
			},
		},
	}
}

func testStore(config *Config) *Store {
	return NewStore(
		logging.DefaultLogger(), afero.NewMemMapFs(), config.Home)
}

func TestInitialize(t *testing.T) {

	config := testConfig()
	store := testStore(config)

	assert.False(t, store.IsInitialized())
	assert.Nil(t, store.Initialize())
	assert.True(t, store.IsInitialized())

	expected := []string{
		"localca-test/ca/index.txt",
		"localca-test/ca/index.txt.old",
		"localca-test/ca/index.txt.attr",
		"localca-test/ca/index.txt.attr.old",
		"localca-test/ca/serial",
		"localca-test/ca/serial.old",
	}
	for _, file := range expected {
		exists, _ := afero.Exists(store.fs, file)
		assert.True(t, exists, file)
	}

	dirs := []string{
		"localca-test/ca/private",
		"localca-test/ca/certs",
	}
	for _, dir := range dirs {
		exists, _ := afero.DirExists(store.fs, dir)
		assert.True(t, exists, dir)
	}

	info, err := store.fs.Stat("localca-test/ca/private")
	assert.Nil(t, err)
	assert.Equal(t, privateDirMode, info.Mode().Perm())
}

func TestInitializeRefusesExistingStore(t *testing.T) {

	config := testConfig()
	store := testStore(config)

	assert.Nil(t, store.Initialize())

	// seed a file and verify re-initialization leaves it alone
	marker := "localca-test/ca/index.txt"
	assert.Nil(t, afero.WriteFile(store.fs, marker, []byte("marker"), 0644))

	err := store.Initialize()
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	data, _ := afero.ReadFile(store.fs, marker)
	assert.Equal(t, "marker", string(data))
}

func TestWriteSerialRotation(t *testing.T) {

	config := testConfig()
	store := testStore(config)
	assert.Nil(t, store.Initialize())

	first, err := NewSerialNumber(rand.Reader)
	assert.Nil(t, err)
	assert.Nil(t, store.WriteSerial(first))

	second, err := NewSerialNumber(rand.Reader)
	assert.Nil(t, err)
	assert.Nil(t, store.WriteSerial(second))

	serial, _ := store.Serial()
	assert.Equal(t, second.Hex()+"\n", string(serial))

	old, _ := afero.ReadFile(store.fs, "localca-test/ca/serial.old")
	assert.Equal(t, first.Hex()+"\n", string(old))
}

func TestRecordIssuedRotation(t *testing.T) {

	config := testConfig()
	store := testStore(config)
	assert.Nil(t, store.Initialize())

	subject := config.Identity.Subject
	notAfter := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	sn, err := NewSerialNumber(rand.Reader)
	assert.Nil(t, err)
	assert.Nil(t, store.RecordIssued(sn, notAfter, subject))

	index, _ := store.Index()
	line := fmt.Sprintf("V\t300102030405Z\t%s\tunknown\t%s\n", sn.Hex(), subject)
	assert.Equal(t, line, string(index))

	// a second record preserves the previous database content
	sn2, err := NewSerialNumber(rand.Reader)
	assert.Nil(t, err)
	assert.Nil(t, store.RecordIssued(sn2, notAfter, subject))

	index, _ = store.Index()
	assert.Contains(t, string(index), sn.Hex())
	assert.Contains(t, string(index), sn2.Hex())

	old, _ := afero.ReadFile(store.fs, "localca-test/ca/index.txt.old")
	assert.Equal(t, line, string(old))
}
