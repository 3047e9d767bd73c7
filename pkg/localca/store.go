package localca

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jeremyhahn/go-localca/pkg/logging"
	"github.com/spf13/afero"
)

type FSExtension string

const (
	FSEXT_PRIVATE_PEM FSExtension = ".key"
	FSEXT_CSR         FSExtension = ".csr"
	FSEXT_PEM         FSExtension = ".crt"
	FSEXT_DER         FSExtension = ".cer"
	FSEXT_PKCS12      FSExtension = ".p12"

	caDirName      = "ca"
	privateDirName = "private"
	certsDirName   = "certs"

	indexFile     = "index.txt"
	indexAttrFile = "index.txt.attr"
	serialFile    = "serial"
	oldSuffix     = ".old"
	policyFile    = "localca.cnf"

	// index.txt uses the openssl database time layout, YYMMDDHHMMSSZ
	indexTimeLayout = "060102150405Z"

	rootDirMode    = os.FileMode(0755)
	privateDirMode = os.FileMode(0700)
	privateKeyMode = os.FileMode(0400)
	artifactMode   = os.FileMode(0644)
)

var (
	ErrAlreadyInitialized = errors.New("local-ca: store already initialized")
	ErrNotInitialized     = errors.New("local-ca: store not initialized")
	ErrCertNotFound       = errors.New("local-ca: certificate not found")
)

// Store owns the on-disk layout of the Certificate Authority: the
// private key directory, the issued certificate directory, the
// openssl style certificate database and serial files, and the
// end-entity artifacts in the root directory.
type Store struct {
	logger     *logging.Logger
	fs         afero.Fs
	rootDir    string
	caDir      string
	privateDir string
	certsDir   string
}

func NewStore(logger *logging.Logger, fs afero.Fs, rootDir string) *Store {
	caDir := fmt.Sprintf("%s/%s", rootDir, caDirName)
	return &Store{
		logger:     logger,
		fs:         fs,
		rootDir:    rootDir,
		caDir:      caDir,
		privateDir: fmt.Sprintf("%s/%s", caDir, privateDirName),
		certsDir:   fmt.Sprintf("%s/%s", caDir, certsDirName),
	}
}

// Initialize creates the store skeleton: the directory tree, the empty
// certificate database and serial registry files, and their rotation
// companions. Refuses to touch a root directory that already exists.
func (store *Store) Initialize() error {
	if _, err := store.fs.Stat(store.rootDir); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, store.rootDir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	store.logger.Debugf("initializing certificate store: %s", store.rootDir)
	if err := store.fs.MkdirAll(store.certsDir, rootDirMode); err != nil {
		return err
	}
	if err := store.fs.MkdirAll(store.privateDir, privateDirMode); err != nil {
		return err
	}
	registry := []string{
		indexFile,
		indexFile + oldSuffix,
		indexAttrFile,
		indexAttrFile + oldSuffix,
		serialFile,
		serialFile + oldSuffix,
	}
	for _, file := range registry {
		path := fmt.Sprintf("%s/%s", store.caDir, file)
		if err := afero.WriteFile(store.fs, path, []byte{}, artifactMode); err != nil {
			return err
		}
	}
	return nil
}

// IsInitialized reports whether the store skeleton is present.
func (store *Store) IsInitialized() bool {
	path := fmt.Sprintf("%s/%s", store.caDir, indexFile)
	exists, _ := afero.Exists(store.fs, path)
	return exists
}

// WritePolicy materializes the signing policy document at the store
// root, replacing any previous version.
func (store *Store) WritePolicy(policy SigningPolicy) error {
	path := fmt.Sprintf("%s/%s", store.rootDir, policyFile)
	return afero.WriteFile(store.fs, path, []byte(policy.Render()), artifactMode)
}

// WriteSerial rotates the current serial file into serial.old and
// records the newly allocated serial.
func (store *Store) WriteSerial(sn SerialNumber) error {
	path := fmt.Sprintf("%s/%s", store.caDir, serialFile)
	if err := store.rotate(path); err != nil {
		return err
	}
	data := []byte(sn.Hex() + "\n")
	return afero.WriteFile(store.fs, path, data, artifactMode)
}

// RecordIssued rotates the certificate database into index.txt.old and
// appends a V status line for the issued certificate.
func (store *Store) RecordIssued(sn SerialNumber, notAfter time.Time, subject Subject) error {
	path := fmt.Sprintf("%s/%s", store.caDir, indexFile)
	if err := store.rotate(path); err != nil {
		return err
	}
	index, err := afero.ReadFile(store.fs, path)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("V\t%s\t%s\tunknown\t%s\n",
		notAfter.UTC().Format(indexTimeLayout), sn.Hex(), subject)
	index = append(index, []byte(line)...)
	return afero.WriteFile(store.fs, path, index, artifactMode)
}

// rotate preserves the current content of file in file.old. The file
// itself is left in place so registry updates read-modify-write it.
func (store *Store) rotate(file string) error {
	data, err := afero.ReadFile(store.fs, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotInitialized, file)
		}
		return err
	}
	return afero.WriteFile(store.fs, file+oldSuffix, data, artifactMode)
}

// SaveCAKey writes the encrypted CA private key PEM into the owner
// only private partition.
func (store *Store) SaveCAKey(name string, data []byte) error {
	path := fmt.Sprintf("%s/%s%s", store.privateDir, name, FSEXT_PRIVATE_PEM)
	return afero.WriteFile(store.fs, path, data, privateKeyMode)
}

// CAKey reads the encrypted CA private key PEM.
func (store *Store) CAKey(name string) ([]byte, error) {
	path := fmt.Sprintf("%s/%s%s", store.privateDir, name, FSEXT_PRIVATE_PEM)
	return afero.ReadFile(store.fs, path)
}

// SaveCAArtifact writes a CA-side artifact: signing requests at the CA
// directory root, certificates into the certs partition.
func (store *Store) SaveCAArtifact(name string, data []byte, extension FSExtension) error {
	dir := store.caDir
	if extension == FSEXT_PEM || extension == FSEXT_DER {
		dir = store.certsDir
	}
	path := fmt.Sprintf("%s/%s%s", dir, name, extension)
	return afero.WriteFile(store.fs, path, data, artifactMode)
}

// GetCAArtifact reads a CA-side artifact saved by SaveCAArtifact.
func (store *Store) GetCAArtifact(name string, extension FSExtension) ([]byte, error) {
	dir := store.caDir
	if extension == FSEXT_PEM || extension == FSEXT_DER {
		dir = store.certsDir
	}
	path := fmt.Sprintf("%s/%s%s", dir, name, extension)
	data, err := afero.ReadFile(store.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCertNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

// SaveArtifact writes an end-entity artifact at the store root.
// Private keys are written owner read-only.
func (store *Store) SaveArtifact(name string, data []byte, extension FSExtension) error {
	mode := artifactMode
	if extension == FSEXT_PRIVATE_PEM {
		mode = privateKeyMode
	}
	path := fmt.Sprintf("%s/%s%s", store.rootDir, name, extension)
	return afero.WriteFile(store.fs, path, data, mode)
}

// GetArtifact reads an end-entity artifact from the store root.
func (store *Store) GetArtifact(name string, extension FSExtension) ([]byte, error) {
	path := fmt.Sprintf("%s/%s%s", store.rootDir, name, extension)
	data, err := afero.ReadFile(store.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCertNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

// Index returns the raw certificate database.
func (store *Store) Index() ([]byte, error) {
	path := fmt.Sprintf("%s/%s", store.caDir, indexFile)
	return afero.ReadFile(store.fs, path)
}

// Serial returns the raw serial file content.
func (store *Store) Serial() ([]byte, error) {
	path := fmt.Sprintf("%s/%s", store.caDir, serialFile)
	return afero.ReadFile(store.fs, path)
}
