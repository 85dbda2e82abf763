// Package memory implementa todos los contratos de internal/domain/repository
// sobre maps en memoria. Útil para desarrollo y tests.
//
// Todas las operaciones toman el mutex del Store, así que las garantías de
// atomicidad exigidas por los contratos (Use de codes/sesiones, constraint de
// primario verificado único) se cumplen trivialmente.
package memory

import (
	"strings"
	"sync"

	"github.com/authrim/authrim/internal/domain/repository"
)

// Store agrupa todos los repositorios en memoria.
type Store struct {
	mu sync.RWMutex

	tenants     map[string]repository.Tenant
	apps        map[string]repository.Application // key: client_id (espacio global)
	connections map[string][]repository.Connection
	users       map[string]repository.User // key: tenantID+"/"+userID
	primaries   map[string]string          // key: tenantID+"|"+lower(email) -> userID
	sessions    map[string]repository.Session
	codes       map[string]repository.Code // key: tenantID+"/"+codeID
	passwords   map[string]repository.Password
	keys        []repository.SigningKey
	hooks       map[string][]repository.Hook
	logs        map[string][]repository.LogEntry
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		tenants:     make(map[string]repository.Tenant),
		apps:        make(map[string]repository.Application),
		connections: make(map[string][]repository.Connection),
		users:       make(map[string]repository.User),
		primaries:   make(map[string]string),
		sessions:    make(map[string]repository.Session),
		codes:       make(map[string]repository.Code),
		passwords:   make(map[string]repository.Password),
		hooks:       make(map[string][]repository.Hook),
		logs:        make(map[string][]repository.LogEntry),
	}
}

// Accessors tipados por contrato.

func (s *Store) Tenants() repository.TenantRepository           { return &tenantRepo{s} }
func (s *Store) Applications() repository.ApplicationRepository { return &applicationRepo{s} }
func (s *Store) Connections() repository.ConnectionRepository   { return &connectionRepo{s} }
func (s *Store) Users() repository.UserRepository               { return &userRepo{s} }
func (s *Store) Sessions() repository.SessionRepository         { return &sessionRepo{s} }
func (s *Store) Codes() repository.CodeRepository               { return &codeRepo{s} }
func (s *Store) Passwords() repository.PasswordRepository       { return &passwordRepo{s} }
func (s *Store) Keys() repository.KeyRepository                 { return &keyRepo{s} }
func (s *Store) Hooks() repository.HookRepository               { return &hookRepo{s} }
func (s *Store) Logs() repository.LogRepository                 { return &logRepo{s} }

func userKey(tenantID, userID string) string { return tenantID + "/" + userID }
func codeKey(tenantID, codeID string) string { return tenantID + "/" + codeID }
func emailKey(tenantID, email string) string {
	return tenantID + "|" + strings.ToLower(strings.TrimSpace(email))
}
