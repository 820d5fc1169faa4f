package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/internal/infrastructure/db"
)

// ErrLicitacaoNotFound is returned when no tender matches the PNCP id.
var ErrLicitacaoNotFound = errors.New("licitacao not found")

const licitacaoColumns = `
	pncp_id, numero_controle, modalidade, objeto, objeto_simplificado,
	situacao, data_publicacao, data_abertura, data_encerramento,
	valor_estimado, orgao_cnpj, municipio, uf, itens, created_at, updated_at`

// Sort columns exposed on the listing endpoint. Anything else falls back
// to created_at.
var allowedSortColumns = map[string]bool{
	"created_at":      true,
	"data_publicacao": true,
	"valor_estimado":  true,
	"data_abertura":   true,
}

// LicitacaoRepository stores the tender catalogue in Postgres.
type LicitacaoRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewLicitacaoRepository(database *db.Database, logger *logrus.Logger) ports.LicitacaoRepository {
	return &LicitacaoRepository{db: database, logger: logger}
}

func (r *LicitacaoRepository) List(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error) {
	ordenar := opts.Ordenar
	if !allowedSortColumns[ordenar] {
		ordenar = "created_at"
	}
	direcao := "DESC"
	if opts.Direcao == "ASC" {
		direcao = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM licitacoes ORDER BY %s %s LIMIT $1 OFFSET $2`,
		licitacaoColumns, ordenar, direcao)

	var items []*licitacao.Licitacao
	if err := r.db.DB.SelectContext(ctx, &items, query, opts.Limite, opts.Offset()); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to list licitacoes")
		}
		return nil, 0, fmt.Errorf("failed to list licitacoes: %w", err)
	}

	var total int
	if err := r.db.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM licitacoes`); err != nil {
		return nil, 0, fmt.Errorf("failed to count licitacoes: %w", err)
	}
	return items, total, nil
}

func (r *LicitacaoRepository) Search(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error) {
	where, args := buildSearchConditions(filter)

	argIndex := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM licitacoes%s ORDER BY data_publicacao DESC NULLS LAST LIMIT $%d OFFSET $%d`,
		licitacaoColumns, where, argIndex, argIndex+1)
	args = append(args, filter.Limite, (filter.Pagina-1)*filter.Limite)

	var items []*licitacao.Licitacao
	if err := r.db.DB.SelectContext(ctx, &items, query, args...); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to search licitacoes")
		}
		return nil, 0, fmt.Errorf("failed to search licitacoes: %w", err)
	}

	countWhere, countArgs := buildSearchConditions(filter)
	var total int
	if err := r.db.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM licitacoes"+countWhere, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}
	return items, total, nil
}

func buildSearchConditions(filter licitacao.SearchFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	add := func(cond string, value interface{}) {
		conditions = append(conditions, cond+"$"+strconv.Itoa(argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter.UF != "" {
		add("uf = ", filter.UF)
	}
	if filter.Municipio != "" {
		add("municipio ILIKE ", filter.Municipio)
	}
	if filter.Modalidade != "" {
		add("modalidade = ", filter.Modalidade)
	}
	if filter.Situacao != "" {
		add("situacao = ", filter.Situacao)
	}
	if filter.PalavraChave != "" {
		conditions = append(conditions, fmt.Sprintf("(objeto ILIKE $%d OR objeto_simplificado ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.PalavraChave+"%")
		argIndex++
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *LicitacaoRepository) GetByPNCPID(ctx context.Context, pncpID string) (*licitacao.Licitacao, error) {
	var l licitacao.Licitacao
	query := fmt.Sprintf(`SELECT %s FROM licitacoes WHERE pncp_id = $1`, licitacaoColumns)

	err := r.db.DB.GetContext(ctx, &l, query, pncpID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrLicitacaoNotFound, pncpID)
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"pncp_id": pncpID}).WithError(err).Error("db: failed to load licitacao")
		}
		return nil, fmt.Errorf("failed to get licitacao: %w", err)
	}
	return &l, nil
}

// Upsert writes an imported tender, replacing mutable fields when the
// sync sees the record again.
func (r *LicitacaoRepository) Upsert(ctx context.Context, l *licitacao.Licitacao) error {
	query := `
		INSERT INTO licitacoes (
			pncp_id, numero_controle, modalidade, objeto, objeto_simplificado,
			situacao, data_publicacao, data_abertura, data_encerramento,
			valor_estimado, orgao_cnpj, municipio, uf, itens
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (pncp_id) DO UPDATE SET
			modalidade = EXCLUDED.modalidade,
			objeto = EXCLUDED.objeto,
			objeto_simplificado = EXCLUDED.objeto_simplificado,
			situacao = EXCLUDED.situacao,
			data_abertura = EXCLUDED.data_abertura,
			data_encerramento = EXCLUDED.data_encerramento,
			valor_estimado = EXCLUDED.valor_estimado,
			itens = EXCLUDED.itens,
			updated_at = NOW()`

	_, err := r.db.DB.ExecContext(ctx, query,
		l.PNCPID, l.NumeroControle, l.Modalidade, l.Objeto, l.ObjetoSimplificado,
		l.Situacao, l.DataPublicacao, l.DataAbertura, l.DataEncerramento,
		l.ValorEstimado, l.OrgaoCNPJ, l.Municipio, l.UF, l.Itens)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"pncp_id": l.PNCPID}).WithError(err).Error("db: failed to upsert licitacao")
		}
		return fmt.Errorf("failed to upsert licitacao: %w", err)
	}
	return nil
}

func (r *LicitacaoRepository) UpsertOrgao(ctx context.Context, o *licitacao.Orgao) error {
	query := `
		INSERT INTO orgaos (cnpj, razao_social, municipio, uf)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cnpj) DO UPDATE SET
			razao_social = EXCLUDED.razao_social,
			municipio = EXCLUDED.municipio,
			uf = EXCLUDED.uf`

	if _, err := r.db.DB.ExecContext(ctx, query, o.CNPJ, o.RazaoSocial, o.Municipio, o.UF); err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"cnpj": o.CNPJ}).WithError(err).Error("db: failed to upsert orgao")
		}
		return fmt.Errorf("failed to upsert orgao: %w", err)
	}
	return nil
}

func (r *LicitacaoRepository) Stats(ctx context.Context) (*licitacao.Stats, error) {
	stats := &licitacao.Stats{
		PorUF:       map[string]int{},
		PorSituacao: map[string]int{},
	}

	if err := r.db.DB.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM licitacoes`); err != nil {
		return nil, fmt.Errorf("failed to count licitacoes: %w", err)
	}

	var valorTotal sql.NullFloat64
	if err := r.db.DB.GetContext(ctx, &valorTotal, `SELECT SUM(valor_estimado) FROM licitacoes`); err != nil {
		return nil, fmt.Errorf("failed to sum valores: %w", err)
	}
	stats.ValorTotal = valorTotal.Float64

	rows, err := r.db.DB.QueryContext(ctx, `SELECT uf, COUNT(*) FROM licitacoes GROUP BY uf`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by uf: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uf string
		var n int
		if err := rows.Scan(&uf, &n); err != nil {
			return nil, err
		}
		stats.PorUF[uf] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sitRows, err := r.db.DB.QueryContext(ctx, `SELECT situacao, COUNT(*) FROM licitacoes GROUP BY situacao`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by situacao: %w", err)
	}
	defer sitRows.Close()
	for sitRows.Next() {
		var s string
		var n int
		if err := sitRows.Scan(&s, &n); err != nil {
			return nil, err
		}
		stats.PorSituacao[s] = n
	}
	if err := sitRows.Err(); err != nil {
		return nil, err
	}

	stats.AtualizadoEm = time.Now()
	return stats, nil
}
