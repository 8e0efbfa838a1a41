package models

type ReceptionStatus string

const (
	ReceptionStatusPending   ReceptionStatus = "PENDING"
	ReceptionStatusProcessed ReceptionStatus = "PROCESSED"
)

type MovementType string

const (
	MovementTypeIn  MovementType = "IN"
	MovementTypeOut MovementType = "OUT"
)

type IqfPalletStatus string

const (
	IqfPalletStatusPending    IqfPalletStatus = "PENDING"
	IqfPalletStatusDispatched IqfPalletStatus = "DISPATCHED"
)
