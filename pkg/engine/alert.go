// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package engine

// AlertLevel is the severity of a TLS alert record.
type AlertLevel int

const (
	// AlertWarning is a non-fatal alert.
	AlertWarning AlertLevel = 1

	// AlertFatal terminates the session.
	AlertFatal AlertLevel = 2
)

// Alert is a TLS alert description, numbered per RFC 5246 section 7.2.
type Alert int

const (
	AlertCloseNotify             Alert = 0
	AlertUnexpectedMessage       Alert = 10
	AlertBadRecordMAC            Alert = 20
	AlertHandshakeFailure        Alert = 40
	AlertBadCertificate          Alert = 42
	AlertCertificateExpired      Alert = 45
	AlertUnknownCA               Alert = 48
	AlertAccessDenied            Alert = 49
	AlertDecryptError            Alert = 51
	AlertProtocolVersion         Alert = 70
	AlertInternalError           Alert = 80
	AlertUserCanceled            Alert = 90
	AlertNoRenegotiation         Alert = 100
	AlertUnsupportedExtension    Alert = 110
	AlertCertificateUnobtainable Alert = 111
	AlertUnrecognizedName        Alert = 112
	AlertNoApplicationProtocol   Alert = 120
)

var alertNames = map[Alert]string{
	AlertCloseNotify:           "close_notify",
	AlertUnexpectedMessage:     "unexpected_message",
	AlertBadRecordMAC:          "bad_record_mac",
	AlertHandshakeFailure:      "handshake_failure",
	AlertBadCertificate:        "bad_certificate",
	AlertCertificateExpired:    "certificate_expired",
	AlertUnknownCA:             "unknown_ca",
	AlertAccessDenied:          "access_denied",
	AlertDecryptError:          "decrypt_error",
	AlertProtocolVersion:       "protocol_version",
	AlertInternalError:         "internal_error",
	AlertUserCanceled:          "user_canceled",
	AlertNoRenegotiation:       "no_renegotiation",
	AlertUnsupportedExtension:    "unsupported_extension",
	AlertCertificateUnobtainable: "certificate_unobtainable",
	AlertUnrecognizedName:        "unrecognized_name",
	AlertNoApplicationProtocol: "no_application_protocol",
}

// String returns the RFC alert name, or "unknown" for unlisted values.
func (a Alert) String() string {
	if name, ok := alertNames[a]; ok {
		return name
	}
	return "unknown"
}
