package ipa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"reflect"
	"testing"
	"time"

	"go.mozilla.org/pkcs7"

	"github.com/aluedeke/go-appfeed/pkg/ipa/ipatest"
)

// signedProfile wraps a profile payload in a PKCS#7 container signed by a
// throwaway certificate, which is also listed as the developer certificate.
func signedProfile(t *testing.T, payload map[string]interface{}) ([]byte, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Apple Distribution: Example Corp (ABCDE12345)"},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	payload["DeveloperCertificates"] = [][]byte{der}
	sd, err := pkcs7.NewSignedData(ipatest.Plist(t, payload))
	if err != nil {
		t.Fatalf("new signed data: %v", err)
	}
	if err := sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("add signer: %v", err)
	}
	data, err := sd.Finish()
	if err != nil {
		t.Fatalf("finish signed data: %v", err)
	}
	return data, cert
}

func TestEmbeddedProfile(t *testing.T) {
	expires := time.Date(2031, 1, 2, 3, 4, 5, 0, time.UTC)
	data, cert := signedProfile(t, map[string]interface{}{
		"Name":                        "Example Ad Hoc",
		"TeamIdentifier":              []string{"ABCDE12345"},
		"ApplicationIdentifierPrefix": []string{"ZZZZZ99999"},
		"ProvisionedDevices":          []string{"00008030-0001", "00008030-0002"},
		"ExpirationDate":              expires,
		"Entitlements": map[string]interface{}{
			"application-identifier": "ABCDE12345.com.example.*",
			"get-task-allow":         false,
		},
	})

	a := openTestArchive(t, ipatest.App(t, "MyApp", map[string]interface{}{
		"CFBundleIdentifier": "com.example.myapp",
	}, map[string][]byte{
		"embedded.mobileprovision": data,
	})...)
	insp, err := Inspect(a, DefaultTamperRules())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	profile, found, err := EmbeddedProfile(a, insp)
	if err != nil || !found {
		t.Fatalf("EmbeddedProfile = found %v, err %v", found, err)
	}
	if profile.Name != "Example Ad Hoc" || profile.TeamID != "ABCDE12345" {
		t.Errorf("unexpected identity %+v", profile)
	}
	if profile.AppID != "ABCDE12345.com.example.*" {
		t.Errorf("AppID = %q", profile.AppID)
	}
	if !profile.Expires.Equal(expires) || profile.Devices != 2 {
		t.Errorf("Expires = %v, Devices = %d", profile.Expires, profile.Devices)
	}
	if profile.Expired(expires.Add(-time.Hour)) || !profile.Expired(expires.Add(time.Hour)) {
		t.Error("Expired does not follow the expiration date")
	}
	if len(profile.Certificates) != 1 || profile.Certificates[0].CommonName != cert.Subject.CommonName {
		t.Fatalf("Certificates = %+v", profile.Certificates)
	}
	if !profile.Certificates[0].Expires.Equal(cert.NotAfter) {
		t.Errorf("certificate expiry = %v, want %v", profile.Certificates[0].Expires, cert.NotAfter)
	}
	if got := profile.EntitlementKeys(); !reflect.DeepEqual(got, []string{"application-identifier", "get-task-allow"}) {
		t.Errorf("EntitlementKeys = %v", got)
	}
	if !profile.Covers(insp.Descriptor.BundleID) {
		t.Errorf("profile should cover %s", insp.Descriptor.BundleID)
	}
}

func TestParseProfile_TeamFromPrefix(t *testing.T) {
	data, _ := signedProfile(t, map[string]interface{}{
		"Name":                        "Legacy",
		"ApplicationIdentifierPrefix": []string{"ZZZZZ99999"},
		"ExpirationDate":              time.Now().Add(time.Hour),
		"Entitlements": map[string]interface{}{
			"application-identifier": "ZZZZZ99999.com.example.myapp",
		},
	})
	profile, err := ParseProfile(data)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if profile.TeamID != "ZZZZZ99999" || profile.Devices != 0 {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestProfile_Covers(t *testing.T) {
	tests := []struct {
		appID    string
		bundleID string
		want     bool
	}{
		{"ABCDE12345.com.example.myapp", "com.example.myapp", true},
		{"ABCDE12345.com.example.myapp", "com.example.other", false},
		{"ABCDE12345.com.example.*", "com.example.myapp", true},
		{"ABCDE12345.*", "org.anything", true},
		{"ABCDE12345.com.example.*", "com.evil.myapp", false},
		{"", "com.example.myapp", false},
	}
	for _, tt := range tests {
		p := &Profile{TeamID: "ABCDE12345", AppID: tt.appID}
		if got := p.Covers(tt.bundleID); got != tt.want {
			t.Errorf("Covers(%q) with %q = %v, want %v", tt.bundleID, tt.appID, got, tt.want)
		}
	}
}

func TestEmbeddedProfile_Absent(t *testing.T) {
	a := openTestArchive(t, ipatest.App(t, "MyApp", map[string]interface{}{
		"CFBundleIdentifier": "com.example.myapp",
	}, nil)...)

	insp, err := Inspect(a, DefaultTamperRules())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	profile, found, err := EmbeddedProfile(a, insp)
	if profile != nil || found || err != nil {
		t.Fatalf("EmbeddedProfile = %v, %v, %v", profile, found, err)
	}
}

func TestEmbeddedProfile_Garbage(t *testing.T) {
	a := openTestArchive(t, ipatest.App(t, "MyApp", map[string]interface{}{
		"CFBundleIdentifier": "com.example.myapp",
	}, map[string][]byte{
		"embedded.mobileprovision": []byte("not a cms blob"),
	})...)

	insp, err := Inspect(a, DefaultTamperRules())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if _, found, err := EmbeddedProfile(a, insp); !found || err == nil {
		t.Fatalf("expected a parse error, got found=%v err=%v", found, err)
	}
}
