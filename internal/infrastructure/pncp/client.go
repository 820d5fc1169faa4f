package pncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/ports"
)

// ClientConfig holds the consultation API settings.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
}

// Client talks to the PNCP consultation API (no authentication required).
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(config ClientConfig, logger *logrus.Logger) ports.PNCPClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://pncp.gov.br/api/consulta/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// contratacoesResponse mirrors the /contratacoes/publicacao payload.
type contratacoesResponse struct {
	Data         []contratacaoDTO `json:"data"`
	TotalPaginas int              `json:"totalPaginas"`
	NumeroPagina int              `json:"numeroPagina"`
}

type contratacaoDTO struct {
	NumeroControlePNCP       string   `json:"numeroControlePNCP"`
	NumeroCompra             string   `json:"numeroCompra"`
	ModalidadeID             int      `json:"modalidadeId"`
	SituacaoCompraID         int      `json:"situacaoCompraId"`
	ObjetoCompra             string   `json:"objetoCompra"`
	InformacaoComplementar   string   `json:"informacaoComplementar"`
	DataPublicacaoPNCP       string   `json:"dataPublicacaoPncp"`
	DataAberturaProposta     string   `json:"dataAberturaProposta"`
	DataEncerramentoProposta string   `json:"dataEncerramentoProposta"`
	ValorTotalEstimado       *float64 `json:"valorTotalEstimado"`
	OrgaoEntidade            struct {
		CNPJ        string `json:"cnpj"`
		RazaoSocial string `json:"razaoSocial"`
	} `json:"orgaoEntidade"`
	UnidadeOrgao struct {
		MunicipioNome string `json:"municipioNome"`
		UFSigla       string `json:"ufSigla"`
	} `json:"unidadeOrgao"`
	ItensCompra json.RawMessage `json:"itensCompra"`
}

// FetchContratacoes loads one page of tenders published in [from, to].
func (c *Client) FetchContratacoes(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error) {
	params := url.Values{}
	params.Set("dataInicial", from.Format("20060102"))
	params.Set("dataFinal", to.Format("20060102"))
	params.Set("pagina", strconv.Itoa(page))
	params.Set("tamanhoPagina", strconv.Itoa(c.config.PageSize))

	endpoint := c.config.BaseURL + "/contratacoes/publicacao?" + params.Encode()

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp contratacoesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode PNCP response: %w", err)
	}

	result := &ports.PNCPPage{
		TotalPages:  resp.TotalPaginas,
		CurrentPage: resp.NumeroPagina,
	}
	seen := map[string]bool{}
	for _, dto := range resp.Data {
		l := dto.toLicitacao()
		result.Licitacoes = append(result.Licitacoes, l)
		if dto.OrgaoEntidade.CNPJ != "" && !seen[dto.OrgaoEntidade.CNPJ] {
			seen[dto.OrgaoEntidade.CNPJ] = true
			result.Orgaos = append(result.Orgaos, &licitacao.Orgao{
				CNPJ:        dto.OrgaoEntidade.CNPJ,
				RazaoSocial: dto.OrgaoEntidade.RazaoSocial,
				Municipio:   dto.UnidadeOrgao.MunicipioNome,
				UF:          dto.UnidadeOrgao.UFSigla,
			})
		}
	}
	return result, nil
}

// getWithRetry performs a GET, retrying transient failures (network errors
// and 5xx) with a linear backoff.
func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{"attempt": attempt}).WithError(err).Warn("pncp: request failed")
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return []byte(`{"data":[],"totalPaginas":0,"numeroPagina":0}`), nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("PNCP returned status %d", resp.StatusCode)
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{"attempt": attempt, "status": resp.StatusCode}).Warn("pncp: server error")
			}
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("PNCP returned status %d", resp.StatusCode)
		case readErr != nil:
			lastErr = readErr
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("PNCP request failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (d contratacaoDTO) toLicitacao() *licitacao.Licitacao {
	l := &licitacao.Licitacao{
		PNCPID:             d.NumeroControlePNCP,
		NumeroControle:     d.NumeroCompra,
		Modalidade:         modalidadeFromCode(d.ModalidadeID),
		Objeto:             d.ObjetoCompra,
		ObjetoSimplificado: d.InformacaoComplementar,
		Situacao:           situacaoFromCode(d.SituacaoCompraID),
		ValorEstimado:      d.ValorTotalEstimado,
		OrgaoCNPJ:          d.OrgaoEntidade.CNPJ,
		Municipio:          d.UnidadeOrgao.MunicipioNome,
		UF:                 d.UnidadeOrgao.UFSigla,
	}
	if len(d.ItensCompra) > 0 {
		l.Itens = []byte(d.ItensCompra)
	}
	l.DataPublicacao = parsePNCPTime(d.DataPublicacaoPNCP)
	l.DataAbertura = parsePNCPTime(d.DataAberturaProposta)
	l.DataEncerramento = parsePNCPTime(d.DataEncerramentoProposta)
	return l
}

// parsePNCPTime handles the two timestamp shapes the portal emits.
func parsePNCPTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Modalidade codes per the PNCP consultation manual.
func modalidadeFromCode(code int) licitacao.Modalidade {
	switch code {
	case 1:
		return licitacao.ModalidadeLeilaoEletronico
	case 2:
		return licitacao.ModalidadeDialogoCompetitivo
	case 3:
		return licitacao.ModalidadeConcurso
	case 4, 5:
		return licitacao.ModalidadeConcorrencia
	case 6:
		return licitacao.ModalidadePregaoEletronico
	case 7:
		return licitacao.ModalidadePregaoPresencial
	case 8:
		return licitacao.ModalidadeDispensa
	case 9:
		return licitacao.ModalidadeInexigibilidade
	case 10:
		return licitacao.ModalidadeManifestacaoInteresse
	case 11:
		return licitacao.ModalidadePreQualificacao
	case 12:
		return licitacao.ModalidadeCredenciamento
	case 13:
		return licitacao.ModalidadeLeilaoPresencial
	default:
		return licitacao.ModalidadeDesconhecida
	}
}

func situacaoFromCode(code int) licitacao.Situacao {
	switch code {
	case 2:
		return licitacao.SituacaoRevogada
	case 3:
		return licitacao.SituacaoAnulada
	case 4:
		return licitacao.SituacaoSuspensa
	default:
		return licitacao.SituacaoDivulgada
	}
}
