// Package signing implements a configuration-holder/per-run-Signer split:
// a Stage owns signing configuration (key material, algorithm choices,
// KeyInfo emission flags) behind the usual setter-guard discipline, and a
// Signer snapshots that configuration inside one critical section at the
// start of a run, then signs items without locking — making per-item
// signing safe to parallelize.
//
// True XML canonicalization and XML-DSig wire formatting are left to an
// external collaborator; this package accepts a caller-supplied
// Canonicalize function for the payload digest and builds only the
// small, fixed SignedInfo structure itself via encoding/xml, the one
// place stdlib XML handling is appropriate here.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
)

// ShaVariant selects the digest algorithm used for both the payload
// digest and the signature itself.
type ShaVariant int

const (
	SHA256 ShaVariant = iota
	SHA384
	SHA512
)

func (v ShaVariant) hash() crypto.Hash {
	switch v {
	case SHA384:
		return crypto.SHA384
	case SHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

// uri returns the XML-DSig algorithm identifier for this variant's
// digest method, used only as the DigestMethod/Algorithm attribute value.
func (v ShaVariant) uri() string {
	switch v {
	case SHA384:
		return "http://www.w3.org/2001/04/xmldsig-more#sha384"
	case SHA512:
		return "http://www.w3.org/2001/04/xmlenc#sha512"
	default:
		return "http://www.w3.org/2001/04/xmlenc#sha256"
	}
}

// Config holds every knob the signing stage owns. Canonicalize and
// IDAttribute are the payload-specific hooks a collaborator supplies so
// this package stays DOM-agnostic; Signer does the actual RSA operation.
type Config[T any] struct {
	Signer            crypto.Signer
	Certificate       *x509.Certificate
	EmitKeyValue      bool
	EmitX509Data      bool
	InclusivePrefixes []string
	Sha               ShaVariant
	StripCR           bool
	PreDigestDebug    bool

	// Canonicalize produces the canonical byte form of value's payload
	// that the digest is computed over. Real C14N is an external
	// collaborator's job; tests and simple payloads may supply a
	// deterministic serialization instead.
	Canonicalize func(value T) ([]byte, error)

	// IDAttribute returns the payload's id attribute, if it has one.
	// When it returns ok=false, the Reference URI is "" (a same-document,
	// whole-tree reference) rather than "#id".
	IDAttribute func(value T) (id string, ok bool)
}

func (c Config[T]) validate() error {
	if c.Signer == nil {
		return fmt.Errorf("signing: Config.Signer is required")
	}
	if c.Canonicalize == nil {
		return fmt.Errorf("signing: Config.Canonicalize is required")
	}
	if c.IDAttribute == nil {
		return fmt.Errorf("signing: Config.IDAttribute is required")
	}
	return nil
}

func (c Config[T]) copy() Config[T] {
	cp := c
	cp.InclusivePrefixes = append([]string(nil), c.InclusivePrefixes...)
	return cp
}

// Stage is the configuration holder. It participates in the normal
// component lifecycle: SetConfig is only legal before Initialize, per the
// setter-guard discipline every public setter in this codebase follows.
type Stage[T any] struct {
	base *component.Base
	mu   sync.RWMutex
	cfg  Config[T]
}

// NewStage constructs an uninitialized signing Stage.
func NewStage[T any](id string) *Stage[T] {
	b := component.NewBase(true)
	_ = b.SetID(id)
	return &Stage[T]{base: b}
}

func (s *Stage[T]) ID() string { return s.base.ID() }

// SetConfig replaces the stage's signing configuration. Like every setter
// in this codebase, it is only legal before Initialize.
func (s *Stage[T]) SetConfig(cfg Config[T]) error {
	if err := s.base.CheckSetterPreconditions("SetConfig"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

// Initialize validates that the configuration is complete, then
// transitions the stage to initialized. Past this point SetConfig fails.
func (s *Stage[T]) Initialize() error {
	s.mu.RLock()
	err := s.cfg.validate()
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.base.Initialize()
}

// Destroy destroys the underlying component.
func (s *Stage[T]) Destroy() { s.base.Destroy() }

// Snapshot copies the stage's configuration under a single read lock. A
// Signer built from a Snapshot needs no further locking: this is the
// "one critical section at construction, lock-free afterward" pattern
// worth using for any stage with more than a handful of options.
func (s *Stage[T]) Snapshot() Config[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.copy()
}

// Signer performs signing for one run using a configuration snapshot
// taken once at construction.
type Signer[T any] struct {
	cfg Config[T]
}

// NewSigner snapshots stage's configuration and returns a lock-free
// Signer usable for the remainder of one pipeline run. Build a fresh
// Signer per run if the stage's configuration may have changed (e.g.
// after a hot reload) between runs.
func NewSigner[T any](stage *Stage[T]) (*Signer[T], error) {
	cfg := stage.Snapshot()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Signer[T]{cfg: cfg}, nil
}

// Signature is the result of signing one item's payload.
type Signature struct {
	ReferenceURI        string
	DigestAlgorithm     string
	DigestValue         []byte
	SignatureValueB64   string
	X509CertificatePEM  string
	PreDigestBytes      []byte // only populated when Config.PreDigestDebug is set
}

type signedInfoXML struct {
	XMLName   xml.Name        `xml:"SignedInfo"`
	Reference referenceXML    `xml:"Reference"`
}

type referenceXML struct {
	URI          string          `xml:"URI,attr"`
	DigestMethod digestMethodXML `xml:"DigestMethod"`
	DigestValue  string          `xml:"DigestValue"`
}

type digestMethodXML struct {
	Algorithm string `xml:"Algorithm,attr"`
}

// SignElement computes a Reference URI from value's id attribute (""
// when absent, else "#id"), canonicalizes value's payload, digests it,
// builds a SignedInfo with exactly one Reference, and signs that
// SignedInfo. When Config.StripCR is set, CR characters are stripped
// from the base64-wrapped SignatureValue and X509Certificate text to
// stabilize output across runs, mirroring how this codebase sanitizes
// other multi-line encoded text.
func (s *Signer[T]) SignElement(value T) (*Signature, error) {
	refURI := ""
	if id, ok := s.cfg.IDAttribute(value); ok && id != "" {
		refURI = "#" + id
	}

	canonical, err := s.cfg.Canonicalize(value)
	if err != nil {
		return nil, fmt.Errorf("signing: canonicalize: %w", err)
	}

	h := s.cfg.Sha.hash().New()
	h.Write(canonical)
	digest := h.Sum(nil)

	sig := &Signature{
		ReferenceURI:    refURI,
		DigestAlgorithm: s.cfg.Sha.uri(),
		DigestValue:     digest,
	}
	if s.cfg.PreDigestDebug {
		sig.PreDigestBytes = append([]byte(nil), canonical...)
	}

	info := signedInfoXML{
		Reference: referenceXML{
			URI: refURI,
			DigestMethod: digestMethodXML{
				Algorithm: s.cfg.Sha.uri(),
			},
			DigestValue: base64.StdEncoding.EncodeToString(digest),
		},
	}
	infoBytes, err := xml.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("signing: marshal SignedInfo: %w", err)
	}

	infoHash := s.cfg.Sha.hash().New()
	infoHash.Write(infoBytes)
	infoDigest := infoHash.Sum(nil)

	rawSig, err := s.cfg.Signer.Sign(rand.Reader, infoDigest, s.cfg.Sha.hash())
	if err != nil {
		return nil, fmt.Errorf("signing: sign SignedInfo: %w", err)
	}
	sigB64 := wrapBase64(base64.StdEncoding.EncodeToString(rawSig))
	if s.cfg.StripCR {
		sigB64 = stripCR(sigB64)
	}
	sig.SignatureValueB64 = sigB64

	if s.cfg.EmitX509Data && s.cfg.Certificate != nil {
		certB64 := wrapBase64(base64.StdEncoding.EncodeToString(s.cfg.Certificate.Raw))
		if s.cfg.StripCR {
			certB64 = stripCR(certB64)
		}
		sig.X509CertificatePEM = certB64
	}

	return sig, nil
}

// wrapBase64 mimics the line-wrapped base64 XML-DSig implementations
// conventionally emit, using CRLF as the line terminator so StripCR has
// something to do.
func wrapBase64(s string) string {
	const width = 76
	var b strings.Builder
	for i := 0; i < len(s); i += width {
		end := i + width
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:end])
		if end < len(s) {
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

func stripCR(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}
