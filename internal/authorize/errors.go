package authorize

import "errors"

// Taxonomía de errores del authorization endpoint. Los tres primeros se
// reportan SIN redirigir (nunca se redirige a una redirect_uri no verificada).
var (
	// ErrInvalidRequest: parámetros obligatorios ausentes o malformados.
	// Se reporta antes de persistir cualquier estado.
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrUnauthorizedClient: client/tenant desconocido o redirect_uri fuera
	// de la allowlist.
	ErrUnauthorizedClient = errors.New("unauthorized_client")

	// ErrInvalidCredentials: password u OTP incorrecto. Re-renderiza login
	// preservando la sesión; no es un error de protocolo.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrExpiredSession: link de login viejo; hay que reiniciar el flujo.
	ErrExpiredSession = errors.New("expired_session")

	// ErrSessionConsumed: la sesión ya emitió un code o tokens; una segunda
	// emisión contra la misma sesión falla siempre.
	ErrSessionConsumed = errors.New("session_consumed")

	// ErrSignUpsDisabled: la application no acepta registros nuevos.
	ErrSignUpsDisabled = errors.New("sign_ups_disabled")

	// ErrEmailNotVerified: email_validation=enforced y el usuario no verificó.
	ErrEmailNotVerified = errors.New("email_not_verified")
)
