// Package repository define los contratos de persistencia del dominio.
//
// Las implementaciones viven en internal/store/pg (PostgreSQL) y
// internal/store/memory (desarrollo y tests). Los servicios dependen solo de
// estas interfaces.
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - "No existe" se reporta con ErrNotFound, nunca con (nil, nil).
//   - Los tokens se guardan y buscan por hash (SHA-256 base64url), nunca en claro.
package repository
