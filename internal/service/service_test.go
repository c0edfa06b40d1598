package service

import (
	"points-bot/internal/repository"
	"points-bot/internal/repository/memory"
)

// Both ledgers must satisfy the store interfaces.
var (
	_ UserStore       = (*repository.UserRepository)(nil)
	_ UserStore       = (*memory.Store)(nil)
	_ CardKeyStore    = (*repository.CardKeyRepository)(nil)
	_ CardKeyStore    = memory.CardKeys{}
	_ HistoryStore    = (*repository.TransactionRepository)(nil)
	_ HistoryStore    = (*memory.Store)(nil)
	_ RecipientLister = (*repository.UserRepository)(nil)
)
