package detection

import (
	"strings"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const CORSMisconfigurationID = 10098

var corsTags = []string{"OWASP_2021_A01", "OWASP_2017_A05"}

type CORSRule struct{}

func NewCORSRule() *CORSRule {
	return &CORSRule{}
}

func (r *CORSRule) ID() int { return CORSMisconfigurationID }

func (r *CORSRule) Name() string { return "Cross-Domain Misconfiguration" }

func (r *CORSRule) Scan(msg *httpmsg.Message, sink alert.Sink) {
	for _, f := range msg.Response.Header {
		if !strings.EqualFold(f.Name, "Access-Control-Allow-Origin") || strings.TrimSpace(f.Value) != "*" {
			continue
		}
		sink.Raise(alert.Alert{
			PluginID:   CORSMisconfigurationID,
			Name:       r.Name(),
			Risk:       alert.RiskMedium,
			Confidence: alert.ConfidenceMedium,
			URI:        msg.Request.URI,
			Evidence:   f.Name + ": *",
			OtherInfo: "The CORS misconfiguration on the web server permits cross-domain read requests from " +
				"arbitrary third party domains, using unauthenticated APIs on this domain. Web browser " +
				"implementations do not permit arbitrary third parties to read the response from authenticated " +
				"APIs, however. This reduces the risk somewhat.",
			Solution: "Ensure that sensitive data is not available in an unauthenticated manner (using IP " +
				"address white-listing, for instance). Configure the \"Access-Control-Allow-Origin\" HTTP header " +
				"to a more restrictive set of domains, or remove all CORS headers entirely.",
			Reference: "https://vulncat.fortify.com/en/detail?id=desc.config.dotnet.html5_overly_permissive_cors_policy",
			CWEID:     264,
			WASCID:    14,
			Tags:      corsTags,
		})
		return
	}
}
