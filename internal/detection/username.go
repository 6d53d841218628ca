package detection

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/md4"
	"golang.org/x/crypto/sha3"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const UsernameIdorID = 10057

var defaultUsernamePayloads = []string{"admin"}

var usernameIdorTags = []string{"OWASP_2021_A01", "OWASP_2017_A05", "WSTG-v42-ATHZ-04", "CWE-284"}

type hashFunc struct {
	name string
	new  func() hash.Hash
}

var usernameHashes = []hashFunc{
	{"SHA512", sha512.New},
	{"SHA384", sha512.New384},
	{"SHA256", sha256.New},
	{"SHA3-256", sha3.New256},
	{"SHA1", sha1.New},
	{"MD5", md5.New},
	{"MD4", md4.New},
}

type usernameDigest struct {
	user    string
	algo    string
	pattern *regexp.Regexp
}

type UsernameIdorRule struct {
	digests []usernameDigest
	logger  zerolog.Logger
}

// NewUsernameIdorRule looks for hashes of known user names in responses.
// payloads replaces the default name list ("admin") when non-empty; users
// are always checked.
func NewUsernameIdorRule(users, payloads []string, logger zerolog.Logger) *UsernameIdorRule {
	if len(payloads) == 0 {
		payloads = defaultUsernamePayloads
	}

	var names []string
	seen := make(map[string]bool)
	for _, name := range append(append([]string(nil), users...), payloads...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	r := &UsernameIdorRule{logger: logger.With().Int("plugin", UsernameIdorID).Logger()}
	for _, name := range names {
		for _, h := range usernameHashes {
			d := h.new()
			d.Write([]byte(name))
			digest := hex.EncodeToString(d.Sum(nil))
			r.digests = append(r.digests, usernameDigest{
				user:    name,
				algo:    h.name,
				pattern: regexp.MustCompile("(?i)" + digest),
			})
		}
	}
	return r
}

func (r *UsernameIdorRule) ID() int { return UsernameIdorID }

func (r *UsernameIdorRule) Name() string { return "Username Hash Found" }

func (r *UsernameIdorRule) Scan(msg *httpmsg.Message, sink alert.Sink) {
	resp := msg.Response
	if resp.IsImage() {
		return
	}

	content := resp.HeaderBlock() + string(resp.Body)
	for _, d := range r.digests {
		match := d.pattern.FindString(content)
		if match == "" {
			continue
		}
		r.logger.Debug().Str("uri", msg.Request.URI).Str("user", d.user).Str("algorithm", d.algo).Msg("username hash found")
		sink.Raise(alert.Alert{
			PluginID:   UsernameIdorID,
			Name:       r.Name(),
			Risk:       alert.RiskInfo,
			Confidence: alert.ConfidenceHigh,
			URI:        msg.Request.URI,
			Evidence:   match,
			OtherInfo:  "The following hash of a user name was found: " + d.algo + " of \"" + d.user + "\".",
			Solution: "Use per user or session indirect object references (create a temporary mapping at time of use). " +
				"Or, ensure that each use of a direct object reference is tied to an authorization check.",
			Reference: "https://owasp.org/www-project-web-security-testing-guide/v42/4-Web_Application_Security_Testing/" +
				"05-Authorization_Testing/04-Testing_for_Insecure_Direct_Object_References",
			CWEID:  284,
			WASCID: 2,
			Tags:   usernameIdorTags,
		})
	}
}
