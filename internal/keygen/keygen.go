// Package keygen creates the RS256 key pair the server signs tokens with.
package keygen

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/cryptox"
	"github.com/dmitrijs2005/gophreview/internal/filex"
	"golang.org/x/term"
)

const (
	PrivateKeyName = "private.key"
	PublicKeyName  = "public.key"

	confirmPhrase = "confirm keys"
)

// ErrAborted is returned when the user declines to overwrite existing keys.
var ErrAborted = errors.New("key generation aborted")

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

type Options struct {
	Dir    string
	Bits   int
	Format cryptox.KeyFormat
	Force  bool
}

// ParseOptions reads the keygen flags:
//
//	-o string   output directory (default ".")
//	-bits int   RSA modulus size (default 2048)
//	-pem        write PEM instead of base64 DER
//	-force      overwrite existing keys without asking
func ParseOptions(args []string, errOut io.Writer) (Options, error) {
	var (
		opts Options
		pem  bool
	)
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.Dir, "o", ".", "output directory")
	fs.IntVar(&opts.Bits, "bits", cryptox.MinRSABits, "RSA key size in bits")
	fs.BoolVar(&pem, "pem", false, "write PEM instead of base64 DER")
	fs.BoolVar(&opts.Force, "force", false, "overwrite existing keys")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if pem {
		opts.Format = cryptox.FormatPEM
	}
	return opts, nil
}

// Run writes a fresh key pair into opts.Dir. Existing keys are replaced only
// with opts.Force or, on an interactive stdin, after the user types the
// confirmation phrase.
func Run(opts Options, in io.Reader, inFd int, out io.Writer) error {
	dir, err := filex.EnsureDir(opts.Dir)
	if err != nil {
		return err
	}
	privPath := filepath.Join(dir, PrivateKeyName)
	pubPath := filepath.Join(dir, PublicKeyName)

	overwrite := opts.Force
	if !overwrite {
		exists, err := anyExists(privPath, pubPath)
		if err != nil {
			return err
		}
		if exists {
			if !isTerminal(inFd) {
				return fmt.Errorf("keys already exist in %s, use -force to overwrite", dir)
			}
			ok, err := confirm(in, out)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAborted
			}
			overwrite = true
		}
	}

	key, err := cryptox.GenerateRSAKey(opts.Bits)
	if err != nil {
		return err
	}
	privData, err := cryptox.EncodePrivateKey(key, opts.Format)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(privData)

	pubData, err := cryptox.EncodePublicKey(&key.PublicKey, opts.Format)
	if err != nil {
		return err
	}

	if err := installPair(dir, privPath, pubPath, privData, pubData, overwrite); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "wrote %s\nwrote %s\n", privPath, pubPath)
	return err
}

// installPair stages both halves next to their targets and then moves them
// into place. If the public half cannot be installed, the previous private
// key is restored so the directory never holds a mismatched pair.
func installPair(dir, privPath, pubPath string, privData, pubData []byte, overwrite bool) error {
	privTmp, err := filex.StageSecret(dir, PrivateKeyName, privData)
	if err != nil {
		return err
	}
	defer os.Remove(privTmp)

	pubTmp, err := filex.StageSecret(dir, PublicKeyName, pubData)
	if err != nil {
		return err
	}
	defer os.Remove(pubTmp)

	previous, err := os.ReadFile(privPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", privPath, err)
	}
	defer common.WipeByteArray(previous)
	hadPrevious := err == nil

	if err := filex.Install(privTmp, privPath, overwrite); err != nil {
		return err
	}
	if err := filex.Install(pubTmp, pubPath, overwrite); err != nil {
		if hadPrevious {
			if rbErr := filex.WriteSecret(privPath, previous, true); rbErr != nil {
				return errors.Join(err, fmt.Errorf("restore %s: %w", privPath, rbErr))
			}
		} else {
			_ = os.Remove(privPath)
		}
		return err
	}
	return nil
}

func anyExists(paths ...string) (bool, error) {
	for _, p := range paths {
		ok, err := filex.Exists(p)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func confirm(in io.Reader, out io.Writer) (bool, error) {
	if _, err := fmt.Fprintf(out, "Please type '%s' if you would like to overwrite %s and %s\n> ", confirmPhrase, PublicKeyName, PrivateKeyName); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(line) == confirmPhrase, nil
}
