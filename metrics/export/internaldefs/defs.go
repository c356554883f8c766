package internaldefs

import (
	kaijuauth "github.com/karudo/kaijuauth"
)

// CounterDef maps a kaijuauth metric id to its exported instrument name.
type CounterDef struct {
	ID   kaijuauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the metric exporters.
var CounterDefs = []CounterDef{
	{ID: kaijuauth.MetricLoginSuccess, Name: "kaijuauth_login_success_total", Help: "Successful authentication flows."},
	{ID: kaijuauth.MetricLoginFailure, Name: "kaijuauth_login_failure_total", Help: "Failed authentication flows."},
	{ID: kaijuauth.MetricMethodDisabled, Name: "kaijuauth_method_disabled_total", Help: "Flows rejected because the auth mode is disabled."},
	{ID: kaijuauth.MetricTokenIssued, Name: "kaijuauth_token_issued_total", Help: "Token pairs minted by stateless login."},
	{ID: kaijuauth.MetricTokenRefreshed, Name: "kaijuauth_token_refreshed_total", Help: "Token pairs re-issued from refresh tokens."},
	{ID: kaijuauth.MetricTokenVerifyFailure, Name: "kaijuauth_token_verify_failure_total", Help: "Tokens rejected during verification."},
	{ID: kaijuauth.MetricSessionCreated, Name: "kaijuauth_session_created_total", Help: "Fresh sessions constructed."},
	{ID: kaijuauth.MetricSessionLoaded, Name: "kaijuauth_session_loaded_total", Help: "Sessions resolved from the backing store."},
	{ID: kaijuauth.MetricSessionPersisted, Name: "kaijuauth_session_persisted_total", Help: "Sessions written to the backing store."},
	{ID: kaijuauth.MetricLogout, Name: "kaijuauth_logout_total", Help: "Logout operations."},
	{ID: kaijuauth.MetricKeyRotated, Name: "kaijuauth_key_rotated_total", Help: "Signing key rotations."},
	{ID: kaijuauth.MetricKeyPublishFailure, Name: "kaijuauth_key_publish_failure_total", Help: "Public key cache publishes that failed."},
}
