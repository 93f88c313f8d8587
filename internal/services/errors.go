package services

import (
	"errors"
	"net/http"
)

// PaymentErrorInfo describes one entry of the payment error taxonomy.
type PaymentErrorInfo struct {
	Name       string
	Code       int
	HTTPStatus int
	Message    map[string]string
}

var (
	ErrorInvalidPaymentRequest = PaymentErrorInfo{
		Name:       "InvalidPaymentRequest",
		Code:       -40001,
		HTTPStatus: http.StatusBadRequest,
		Message: map[string]string{
			"pt": "Requisição de pagamento inválida",
			"en": "Invalid payment request",
		},
	}
	ErrorUnsupportedMethod = PaymentErrorInfo{
		Name:       "UnsupportedMethod",
		Code:       -40002,
		HTTPStatus: http.StatusBadRequest,
		Message: map[string]string{
			"pt": "Método de pagamento não suportado",
			"en": "Unsupported payment method",
		},
	}
	ErrorNotFound = PaymentErrorInfo{
		Name:       "NotFound",
		Code:       -40401,
		HTTPStatus: http.StatusNotFound,
		Message: map[string]string{
			"pt": "Pagamento não encontrado",
			"en": "Payment not found",
		},
	}
	ErrorInvalidTransition = PaymentErrorInfo{
		Name:       "InvalidTransition",
		Code:       -40901,
		HTTPStatus: http.StatusConflict,
		Message: map[string]string{
			"pt": "O pagamento já foi finalizado",
			"en": "Payment already reached a final state",
		},
	}
	ErrorAddressUnavailable = PaymentErrorInfo{
		Name:       "AddressUnavailable",
		Code:       -50301,
		HTTPStatus: http.StatusServiceUnavailable,
		Message: map[string]string{
			"pt": "Endereço Bitcoin indisponível",
			"en": "Bitcoin address unavailable",
		},
	}
	ErrorOracleUnavailable = PaymentErrorInfo{
		Name:       "OracleUnavailable",
		Code:       -50302,
		HTTPStatus: http.StatusServiceUnavailable,
		Message: map[string]string{
			"pt": "Cotação indisponível",
			"en": "Exchange rate unavailable",
		},
	}
	ErrorLedgerReadFailure = PaymentErrorInfo{
		Name:       "LedgerReadFailure",
		Code:       -50303,
		HTTPStatus: http.StatusBadGateway,
		Message: map[string]string{
			"pt": "Falha ao consultar a blockchain",
			"en": "Ledger read failed",
		},
	}
	ErrorPersistenceFailure = PaymentErrorInfo{
		Name:       "PersistenceFailure",
		Code:       -50001,
		HTTPStatus: http.StatusInternalServerError,
		Message: map[string]string{
			"pt": "Falha ao gravar o pagamento",
			"en": "Failed to persist payment",
		},
	}
)

// PaymentError is a structured error from the payment core.
type PaymentError struct {
	Info   PaymentErrorInfo
	Detail string
	Err    error
}

func NewPaymentError(info PaymentErrorInfo, detail string, err error) *PaymentError {
	return &PaymentError{Info: info, Detail: detail, Err: err}
}

func (e *PaymentError) Error() string {
	msg := e.Info.Name
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Is matches on the taxonomy entry, so errors.Is(err, ErrNotFound) works for
// any PaymentError carrying ErrorNotFound.
func (e *PaymentError) Is(target error) bool {
	var other *PaymentError
	if !errors.As(target, &other) {
		return false
	}
	return other.Info.Name == e.Info.Name
}

// Sentinels for errors.Is.
var (
	ErrInvalidPaymentRequest = &PaymentError{Info: ErrorInvalidPaymentRequest}
	ErrUnsupportedMethod     = &PaymentError{Info: ErrorUnsupportedMethod}
	ErrNotFound              = &PaymentError{Info: ErrorNotFound}
	ErrInvalidTransition     = &PaymentError{Info: ErrorInvalidTransition}
	ErrAddressUnavailable    = &PaymentError{Info: ErrorAddressUnavailable}
	ErrOracleUnavailable     = &PaymentError{Info: ErrorOracleUnavailable}
	ErrLedgerReadFailure     = &PaymentError{Info: ErrorLedgerReadFailure}
	ErrPersistenceFailure    = &PaymentError{Info: ErrorPersistenceFailure}
)
