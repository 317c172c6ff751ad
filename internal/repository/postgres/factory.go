package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/bookswap-backend/internal/repository"
)

func NewRepositories(pool *pgxpool.Pool) repository.Set {
	return repository.Set{
		Users:        NewUsers(pool),
		Books:        NewBooks(pool),
		Transactions: NewTransactions(pool),
		Collections:  NewCollections(pool),
		AuditLogs:    NewAuditLogs(pool),
	}
}
