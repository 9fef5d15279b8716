package models

import "time"

type Portfolio struct {
	Id   string
	Name string
}

type Wallet struct {
	Id     string
	Name   string
	Symbol string
	Type   string
}

type Withdrawal struct {
	ActivityId     string
	Asset          string
	Amount         string
	Destination    string
	IdempotencyKey string
}

// PrimeTransaction is the subset of a Prime wallet transaction the custodial watcher reads
type PrimeTransaction struct {
	Id             string
	WalletId       string
	Type           string
	Status         string
	Symbol         string
	Amount         string
	IdempotencyKey string
	TransactionId  string
	Network        string
	CreatedAt      time.Time
	CompletedAt    time.Time
}
