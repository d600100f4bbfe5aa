package ipa

import (
	"crypto/x509"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// MaxProfileSize caps the embedded.mobileprovision read
const MaxProfileSize = 1 << 20

// Profile summarises the provisioning profile shipped inside a bundle.
// The CMS signature is not verified.
type Profile struct {
	Name         string
	TeamID       string
	AppID        string // application-identifier entitlement, team prefixed
	Expires      time.Time
	Devices      int // zero for App Store and enterprise profiles
	Certificates []ProfileCertificate
	Entitlements map[string]interface{}
}

// ProfileCertificate is one developer certificate named by a profile
type ProfileCertificate struct {
	CommonName string
	Expires    time.Time
}

// profilePayload is the plist inside the CMS container
type profilePayload struct {
	Name                        string                 `plist:"Name"`
	TeamIdentifier              []string               `plist:"TeamIdentifier"`
	ApplicationIdentifierPrefix []string               `plist:"ApplicationIdentifierPrefix"`
	Entitlements                map[string]interface{} `plist:"Entitlements"`
	DeveloperCertificates       [][]byte               `plist:"DeveloperCertificates"`
	ProvisionedDevices          []string               `plist:"ProvisionedDevices"`
	ExpirationDate              time.Time              `plist:"ExpirationDate"`
}

// ParseProfile reads a .mobileprovision file: a PKCS#7 signed container
// around a plist payload.
func ParseProfile(data []byte) (*Profile, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	var payload profilePayload
	if _, err := plist.Unmarshal(p7.Content, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning profile plist: %w", err)
	}

	p := &Profile{
		Name:         payload.Name,
		Expires:      payload.ExpirationDate,
		Devices:      len(payload.ProvisionedDevices),
		Entitlements: payload.Entitlements,
	}
	switch {
	case len(payload.TeamIdentifier) > 0:
		p.TeamID = payload.TeamIdentifier[0]
	case len(payload.ApplicationIdentifierPrefix) > 0:
		p.TeamID = payload.ApplicationIdentifierPrefix[0]
	}
	p.AppID, _ = payload.Entitlements["application-identifier"].(string)

	for i, der := range payload.DeveloperCertificates {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		p.Certificates = append(p.Certificates, ProfileCertificate{
			CommonName: cert.Subject.CommonName,
			Expires:    cert.NotAfter,
		})
	}
	return p, nil
}

// EmbeddedProfile reads the bundle's embedded.mobileprovision. The bool
// is false when the bundle carries none.
func EmbeddedProfile(a *Archive, insp *Inspection) (*Profile, bool, error) {
	name := path.Join(insp.Root, "embedded.mobileprovision")
	if !a.Has(name) {
		return nil, false, nil
	}
	data, err := a.ReadFile(name, MaxProfileSize)
	if err != nil {
		return nil, true, err
	}
	profile, err := ParseProfile(data)
	if err != nil {
		return nil, true, err
	}
	return profile, true, nil
}

// Expired reports whether the profile had expired at now
func (p *Profile) Expired(now time.Time) bool {
	return now.After(p.Expires)
}

// Covers reports whether the profile's app ID admits bundleID. A trailing
// '*' in the app ID is a wildcard. A bundle whose identifier the profile
// does not cover was re-signed under another identity.
func (p *Profile) Covers(bundleID string) bool {
	id := p.AppID
	if p.TeamID != "" {
		id = strings.TrimPrefix(id, p.TeamID+".")
	}
	if id == "" {
		return false
	}
	if prefix, ok := strings.CutSuffix(id, "*"); ok {
		return strings.HasPrefix(bundleID, prefix)
	}
	return id == bundleID
}

// EntitlementKeys returns the entitlement names in sorted order
func (p *Profile) EntitlementKeys() []string {
	keys := make([]string, 0, len(p.Entitlements))
	for k := range p.Entitlements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
