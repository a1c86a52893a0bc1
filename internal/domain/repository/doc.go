// Package repository define las entidades del CRM y los contratos de persistencia.
//
// Las entidades no llevan tags de serialización: cada adapter (memory, mongo, pg)
// mapea a su propio documento. Los servicios y el dispatcher sólo conocen estas
// interfaces.
//
//	┌───────────────────────────────────────────────┐
//	│   crm / dispatch / scheduler / http           │
//	└───────────────────────────────────────────────┘
//	                      │
//	                      ▼
//	┌───────────────────────────────────────────────┐
//	│   domain/repository (interfaces)              │
//	│   Users, Lists, Recipients, Emails, Activity  │
//	└───────────────────────────────────────────────┘
//	                      │
//	       ┌──────────────┼──────────────┐
//	       ▼              ▼              ▼
//	   memory          mongo            pg
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Los IDs los genera el store.
//   - No hay transacciones entre colecciones.
package repository
