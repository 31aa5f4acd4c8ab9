package domain

import "strings"

// DialStringTemplate is the FreeSWITCH dial-string every directory entry gets.
// The softswitch expands the ${...} variables at call time; the literal must
// match exactly for routing to work.
const DialStringTemplate = `{presence_id=${dialed_user}@${dialed_domain}}${sofia_contact(${dialed_user}@${dialed_domain})}`

// SIPEncode derives the routable SIP username from an email address.
func SIPEncode(email string) string {
	return strings.ReplaceAll(NormalizeEmail(email), "@", "_AT_")
}

type DirectoryEntry struct {
	Username string
	Domain   string
}

type DirectoryVar struct {
	Name  string
	Value string
}

type DirectoryParam struct {
	Name  string
	Value string
}

type DialplanExtension struct {
	Context string
	Name    string
	Weight  int
}

type DialplanCondition struct {
	Field      string
	Expression string
	Weight     int
}

type DialplanAction struct {
	Application string
	Data        string
	Weight      int
}

// ProvisioningPlan is the full set of routing records an activated account
// needs to be dialable: directory entry, routing vars, credential and
// dial-string params, and the extension/condition/action chain. Actions run
// in weight order.
type ProvisioningPlan struct {
	Directory DirectoryEntry
	Vars      []DirectoryVar
	Params    []DirectoryParam
	Extension DialplanExtension
	Condition DialplanCondition
	Actions   []DialplanAction
}

// NewProvisioningPlan materializes the record set for one account. All values
// derive deterministically from the email, the activation code (reused as the
// SIP password) and the configured SIP domain and dialplan context.
func NewProvisioningPlan(email, activationCode, sipDomain, sipContext string) ProvisioningPlan {
	email = NormalizeEmail(email)
	sipUser := SIPEncode(email)

	return ProvisioningPlan{
		Directory: DirectoryEntry{
			Username: sipUser,
			Domain:   sipDomain,
		},
		Vars: []DirectoryVar{
			{Name: "user_context", Value: strings.ToLower(sipContext)},
			{Name: "internal_caller_id_name", Value: email},
		},
		Params: []DirectoryParam{
			{Name: "password", Value: activationCode},
			{Name: "dial-string", Value: DialStringTemplate},
		},
		Extension: DialplanExtension{
			Context: sipContext,
			Name:    email,
			Weight:  0,
		},
		Condition: DialplanCondition{
			Field:      "destination_number",
			Expression: "^" + strings.ReplaceAll(email, "@", "%40") + "$",
			Weight:     10,
		},
		Actions: []DialplanAction{
			{Application: "set", Data: "call_timeout=30", Weight: 10},
			{Application: "bridge", Data: "user/" + sipUser + "@" + sipDomain, Weight: 20},
			{Application: "hangup", Data: "", Weight: 30},
		},
	}
}
