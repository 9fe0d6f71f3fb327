// Package generator produces the payload fixture tree and the preset
// catalog from a fixed endpoint catalog: one payload file and preset per
// endpoint and wire encoding, plus four adversarial variants per
// endpoint with a reference payload.
package generator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vapixprobe/vapixprobe/internal/payload"
)

// Section partitions endpoints by the kind of operation they perform.
type Section string

const (
	SectionGet    Section = "get"
	SectionSet    Section = "set"
	SectionRemove Section = "remove"
)

// Catalog is the full endpoint configuration the generator runs against.
// It is an explicit value, not package state, so a run is fully
// determined by its inputs (modulo the randomized Set* reference
// payloads).
type Catalog struct {
	Get    []string
	Set    []string
	Remove []string

	// Payloads maps a method name (final endpoint path segment) to its
	// reference payload. Endpoints without an entry get no adversarial
	// variants.
	Payloads map[string]payload.Value
}

// Sections returns the endpoint lists with their section labels, in
// generation order.
func (c *Catalog) Sections() []struct {
	Section   Section
	Endpoints []string
} {
	return []struct {
		Section   Section
		Endpoints []string
	}{
		{SectionGet, c.Get},
		{SectionSet, c.Set},
		{SectionRemove, c.Remove},
	}
}

// DefaultCatalog returns the built-in VAPIX intercom/SIP endpoint
// catalog. Set* reference payloads are seeded with randomized but
// well-formed values on every call, so repeated generator runs produce
// the same preset names with fresh reference data.
func DefaultCatalog() *Catalog {
	payloads := map[string]payload.Value{
		// GET endpoints that require parameters.
		"GetSIPAccountStatus": payload.Object(
			payload.M("SIPAccountId", payload.String("sip_account_0")),
		),
		"GetSIPAccount": payload.Object(
			payload.M("SIPAccountId", payload.String("sip_account_0")),
		),
		"GetCallStatus": payload.Object(
			payload.M("CallId", payload.String("Out-18-18-SIP")),
		),

		// SET endpoints.
		"SetSIPAccount": payload.Object(
			payload.M("SIPAccount", randomSIPAccount()),
		),
		"SetSIPAccounts": payload.Object(
			payload.M("SIPAccounts", payload.Object(
				payload.M("SIPAccount", payload.Array(randomSIPAccount(), randomSIPAccount())),
			)),
		),
		"SetSIPConfiguration": payload.Object(
			payload.M("SIPConfiguration", payload.Object(
				payload.M("SIPEnabled", payload.Bool(true)),
			)),
		),
		"SetAudioCodecs": payload.Object(
			payload.M("AudioCodec", payload.Array(payload.Object(
				payload.M("Name", payload.String("G.722")),
				payload.M("SampleRate", payload.Number(16000)),
			))),
		),
		"SetContacts": payload.Object(
			payload.M("contacts", payload.Array(randomContact())),
		),
		"TerminateCall": payload.Object(
			payload.M("CallId", payload.String("Out-18-18-SIP")),
		),
		"Call": payload.Object(
			payload.M("To", payload.String("sip:10.27.35.8:5060")),
		),

		// REMOVE endpoints.
		"RemoveSIPAccount": payload.Object(
			payload.M("SIPAccountId", payload.String("sip_account_0")),
		),
		"RemoveSIPAccounts": payload.Object(
			payload.M("SIPAccountId", payload.Array(
				payload.String("sip_account_0"),
				payload.String("sip_account_1"),
			)),
		),
		"RemoveContacts": payload.Object(
			payload.M("ids", payload.Array(payload.String(uuid.NewString()))),
		),
	}

	return &Catalog{
		Get: []string{
			"/vapix/intercom/GetContacts",
			"/vapix/call/GetSIPAccount",
			"/vapix/call/GetSIPAccounts",
			"/vapix/call/GetSIPAccountStatus",
			"/vapix/call/GetServiceCapabilities",
			"/vapix/call/GetSupportedSIPAccountAttributes",
			"/vapix/call/GetSupportedSIPConfigurationAttributes",
			"/vapix/call/GetSIPConfiguration",
			"/vapix/call/GetSupportedMediaEncryptionModes",
			"/vapix/call/GetDefaultAudioCodecs",
			"/vapix/call/GetSupportedAudioCodecs",
			"/vapix/call/GetAudioCodecs",
			"/vapix/call/GetCallStatus",
		},
		Set: []string{
			"/vapix/call/SetSIPAccount",
			"/vapix/call/SetSIPAccounts",
			"/vapix/call/SetSIPConfiguration",
			"/vapix/call/SetAudioCodecs",
			"/vapix/call/Call",
			"/vapix/call/TerminateCall",
			"/vapix/intercom/SetContacts",
		},
		Remove: []string{
			"/vapix/call/RemoveSIPAccount",
			"/vapix/call/RemoveSIPAccounts",
			"/vapix/intercom/RemoveContacts",
		},
		Payloads: payloads,
	}
}

func randomSIPAccount() payload.Value {
	return payload.Object(
		payload.M("UserId", payload.String(fmt.Sprintf("user%d", 1000+randomInt(9000)))),
		payload.M("Password", payload.String(randomHex(16))),
		payload.M("Registrar", payload.String(fmt.Sprintf("192.168.0.%d", 1+randomInt(254)))),
		payload.M("PublicDomain", payload.String(fmt.Sprintf("example%d.axis.com", 1+randomInt(100)))),
	)
}

func randomContact() payload.Value {
	firstName := fmt.Sprintf("Tester %02d", 1+randomInt(99))
	return payload.Object(
		payload.M("id", payload.String(uuid.NewString())),
		payload.M("type", payload.String("Person")),
		payload.M("firstName", payload.String(firstName)),
		payload.M("lastName", payload.String("")),
		payload.M("callInformation", payload.Array(payload.Object(
			payload.M("type", payload.String("SIP")),
			payload.M("address", payload.String(fmt.Sprintf("192168%d", 1000+randomInt(9000)))),
			payload.M("accountid", payload.String(fmt.Sprintf("sip_account_%d", randomInt(10)))),
		))),
		payload.M("callForkingType", payload.String("sequential")),
		payload.M("UIAttributes", payload.Array(payload.Object(
			payload.M("Name", payload.String("DisplayName")),
			payload.M("Value", payload.String(firstName)),
		))),
	)
}
