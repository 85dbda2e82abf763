// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces son contratos de negocio, independientes del almacenamiento
// subyacente. El engine de autorización depende únicamente de estos contratos;
// las implementaciones concretas viven en internal/store/ (memory para
// desarrollo y tests; otros drivers se implementan contra estas mismas firmas).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - TenantID se pasa explícitamente en métodos que lo requieren.
//   - "No existe" se reporta con ErrNotFound, nunca con nil silencioso.
//   - Errores de dominio están en errors.go.
//
// Garantías exigidas a toda implementación:
//   - CodeRepository.Use y SessionRepository.Use son check-and-set atómicos:
//     bajo redención concurrente del mismo code/sesión exactamente una llamada
//     gana y el resto observa ErrCodeUsed/ErrSessionUsed.
//   - UserRepository.Create rechaza con ErrConflict un segundo usuario primario
//     verificado para el mismo (tenant_id, email).
package repository
