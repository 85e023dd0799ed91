package dispatch

// MQTT v5.0 DISCONNECT reason codes relevant to the dispatch core.
//
// The dispatch core only ever produces DISCONNECT itself for the
// unauthenticated-operation case (spec §6: NotAuthorized=0x87 for any
// operation other than CONNECT); the remaining codes are kept because
// AckWaiter outcomes and PUBACK/PUBREC/PUBCOMP reason codes reuse the same
// numbering space and a caller matching on them should not have to import
// a second constants table.
const (
	ReasonCodeSuccess               uint8 = 0x00
	ReasonCodeNoMatchingSubscribers uint8 = 0x10
	ReasonCodeUnspecifiedError      uint8 = 0x80
	ReasonCodeImplementationError   uint8 = 0x83
	ReasonCodeNotAuthorized         uint8 = 0x87
	ReasonCodeQuotaExceeded         uint8 = 0x97
	ReasonCodeSharedSubNotSupported uint8 = 0x9E
)
