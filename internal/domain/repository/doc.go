// Package repository define los tipos de dominio y los contratos de almacenamiento.
//
// Las implementaciones viven en internal/store/adapters/ (pg, sqlite, memory)
// y se eligen por config (storage.driver):
//
//	┌──────────────────────────────────────────────┐
//	│       services (apikey, health)              │
//	└──────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌──────────────────────────────────────────────┐
//	│  domain/repository                           │
//	│  APIKeyRepository, HealthDataRepository      │
//	└──────────────────────────────────────────────┘
//	                     │
//	      ┌──────────────┼──────────────┐
//	      ▼              ▼              ▼
//	┌───────────┐  ┌───────────┐  ┌───────────┐
//	│    pg     │  │  sqlite   │  │  memory   │
//	└───────────┘  └───────────┘  └───────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
//   - Los repos nunca reciben ni devuelven tokens en claro, solo hashes
package repository
