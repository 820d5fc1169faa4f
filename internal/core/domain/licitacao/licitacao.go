package licitacao

import (
	"time"
)

// Modalidade values as published by PNCP, mapped from the numeric codes of
// the consultation API.
type Modalidade string

const (
	ModalidadeLeilaoEletronico      Modalidade = "LEILAO_ELETRONICO"
	ModalidadeDialogoCompetitivo    Modalidade = "DIALOGO_COMPETITIVO"
	ModalidadeConcurso              Modalidade = "CONCURSO"
	ModalidadeConcorrencia          Modalidade = "CONCORRENCIA"
	ModalidadePregaoEletronico      Modalidade = "PREGAO_ELETRONICO"
	ModalidadePregaoPresencial      Modalidade = "PREGAO_PRESENCIAL"
	ModalidadeDispensa              Modalidade = "DISPENSA"
	ModalidadeInexigibilidade       Modalidade = "INEXIGIBILIDADE"
	ModalidadeCredenciamento        Modalidade = "CREDENCIAMENTO"
	ModalidadeManifestacaoInteresse Modalidade = "MANIFESTACAO_INTERESSE"
	ModalidadePreQualificacao       Modalidade = "PRE_QUALIFICACAO"
	ModalidadeLeilaoPresencial      Modalidade = "LEILAO_PRESENCIAL"
	ModalidadeDesconhecida          Modalidade = "OUTRA"
)

// Situacao is the lifecycle state of a tender.
type Situacao string

const (
	SituacaoDivulgada Situacao = "DIVULGADA"
	SituacaoRevogada  Situacao = "REVOGADA"
	SituacaoAnulada   Situacao = "ANULADA"
	SituacaoSuspensa  Situacao = "SUSPENSA"
	SituacaoEncerrada Situacao = "ENCERRADA"
)

// Licitacao is a tender record imported from PNCP. PNCPID is the natural
// key ("numero de controle PNCP") used on the detail endpoint.
type Licitacao struct {
	PNCPID             string     `json:"pncp_id" db:"pncp_id"`
	NumeroControle     string     `json:"numero_controle" db:"numero_controle"`
	Modalidade         Modalidade `json:"modalidade" db:"modalidade"`
	Objeto             string     `json:"objeto" db:"objeto"`
	ObjetoSimplificado string     `json:"objeto_simplificado" db:"objeto_simplificado"`
	Situacao           Situacao   `json:"situacao" db:"situacao"`
	DataPublicacao     *time.Time `json:"data_publicacao" db:"data_publicacao"`
	DataAbertura       *time.Time `json:"data_abertura" db:"data_abertura"`
	DataEncerramento   *time.Time `json:"data_encerramento" db:"data_encerramento"`
	ValorEstimado      *float64   `json:"valor_estimado" db:"valor_estimado"`
	OrgaoCNPJ          string     `json:"orgao_cnpj" db:"orgao_cnpj"`
	Municipio          string     `json:"municipio" db:"municipio"`
	UF                 string     `json:"uf" db:"uf"`
	Itens              []byte     `json:"-" db:"itens"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Orgao is the contracting body a tender belongs to.
type Orgao struct {
	CNPJ        string    `json:"cnpj" db:"cnpj"`
	RazaoSocial string    `json:"razao_social" db:"razao_social"`
	Municipio   string    `json:"municipio" db:"municipio"`
	UF          string    `json:"uf" db:"uf"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SearchFilter narrows the free search endpoint. Zero values are ignored.
type SearchFilter struct {
	UF           string
	Municipio    string
	Modalidade   Modalidade
	Situacao     Situacao
	PalavraChave string
	Pagina       int
	Limite       int
}

// ListOptions controls the paginated listing endpoint. Sort columns are
// whitelisted by the repository.
type ListOptions struct {
	Pagina  int
	Limite  int
	Ordenar string
	Direcao string
}

// Normalize clamps pagination to the bounds the legacy API documented:
// pages start at 1, page size between 10 and 50.
func (o *ListOptions) Normalize() {
	if o.Pagina < 1 {
		o.Pagina = 1
	}
	if o.Limite < 10 {
		o.Limite = 20
	}
	if o.Limite > 50 {
		o.Limite = 50
	}
	if o.Direcao != "ASC" {
		o.Direcao = "DESC"
	}
}

// Offset returns the SQL offset for the normalized options.
func (o ListOptions) Offset() int { return (o.Pagina - 1) * o.Limite }

// Stats aggregates the public statistics endpoint.
type Stats struct {
	Total        int            `json:"total"`
	PorUF        map[string]int `json:"por_uf"`
	PorSituacao  map[string]int `json:"por_situacao"`
	ValorTotal   float64        `json:"valor_total_estimado"`
	AtualizadoEm time.Time      `json:"atualizado_em"`
}
