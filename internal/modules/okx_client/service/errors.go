package service

import "fmt"

// Kind — класс ошибки REST-запроса. Определяет, ретраить ли и как логировать.
type Kind int

const (
	KindTimeout Kind = iota
	KindHTTP
	KindDecode
	KindCredentialInvalid
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// APIError — типизированная ошибка клиента. Code — код OKX, если дошли до ответа.
type APIError struct {
	Kind       Kind
	Code       string
	HTTPStatus int
	Msg        string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("okx %s: code=%s http=%d msg=%s: %v", e.Kind, e.Code, e.HTTPStatus, e.Msg, e.Err)
	}
	return fmt.Sprintf("okx %s: code=%s http=%d msg=%s", e.Kind, e.Code, e.HTTPStatus, e.Msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// retryable — стоит ли повторять попытку.
func (e *APIError) retryable() bool {
	switch e.Kind {
	case KindCredentialInvalid, KindUnsupported:
		return false
	}
	return true
}

// Коды OKX, означающие мёртвые ключи. Ретраить бесполезно.
var credentialCodes = map[string]bool{
	"50110": true,
	"50111": true,
	"50113": true,
}
