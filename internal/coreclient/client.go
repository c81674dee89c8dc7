// Пакет coreclient — HTTP-клиент для взаимодействия с ядром LexoHub.
// Поддерживает TLS с кастомным CA (PF_CORE_CA_CERT_PATH).
// Операции: CreateMatter (POST /api/v1/matters), CreateInvoice
// (POST /api/v1/invoices), GetOwnerContact (GET /api/v1/practitioners/{id}/contact).
package coreclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// TokenProvider — функция, возвращающая токен для авторизации запросов к ядру.
type TokenProvider func(ctx context.Context) (string, error)

// StaticTokenProvider возвращает TokenProvider с фиксированным токеном
// (service-to-service токен из PF_CORE_AUTH_TOKEN).
func StaticTokenProvider(token string) TokenProvider {
	if token == "" {
		return nil
	}
	return func(_ context.Context) (string, error) {
		return token, nil
	}
}

// MatterPrefill — данные для создания дела из intake запроса.
type MatterPrefill struct {
	ClientName       string `json:"client_name"`
	ClientEmail      string `json:"client_email,omitempty"`
	ClientPhone      string `json:"client_phone,omitempty"`
	Description      string `json:"description"`
	MatterType       string `json:"matter_type,omitempty"`
	UrgencyLevel     string `json:"urgency_level,omitempty"`
	InstructingParty string `json:"instructing_party"`
	OwnerID          string `json:"owner_id"`
}

// InvoiceCarrier — синтетический носитель "как дело" для генерации
// pro forma счёта: реального персистентного дела может ещё не быть.
type InvoiceCarrier struct {
	Matter            MatterPrefill `json:"matter"`
	DefaultToProForma bool          `json:"default_to_pro_forma"`
}

// CreatedEntity — ответ ядра на создание дела или счёта.
type CreatedEntity struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// OwnerContact — контактные данные практика из справочника ядра.
type OwnerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Firm  string `json:"firm,omitempty"`
}

// Client — HTTP-клиент ядра LexoHub.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент ядра.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// tokenProvider — функция для получения токена (nil — запросы без авторизации).
func New(baseURL, caCertPath string, tokenProvider TokenProvider, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата ядра: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат ядра добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "core_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// CreateMatter создаёт дело в ядре из prefill-данных запроса.
// POST /api/v1/matters.
func (c *Client) CreateMatter(ctx context.Context, prefill MatterPrefill) (*CreatedEntity, error) {
	entity, err := c.post(ctx, "/api/v1/matters", prefill)
	if err != nil {
		return nil, fmt.Errorf("создание дела: %w", err)
	}
	if entity.Kind == "" {
		entity.Kind = "matter"
	}
	return entity, nil
}

// CreateInvoice создаёт pro forma счёт в ядре.
// POST /api/v1/invoices. Носитель может быть синтетическим (без
// персистентного дела); счёт по умолчанию помечается как pro forma.
func (c *Client) CreateInvoice(ctx context.Context, carrier InvoiceCarrier) (*CreatedEntity, error) {
	carrier.DefaultToProForma = true
	entity, err := c.post(ctx, "/api/v1/invoices", carrier)
	if err != nil {
		return nil, fmt.Errorf("создание счёта: %w", err)
	}
	if entity.Kind == "" {
		entity.Kind = "invoice"
	}
	return entity, nil
}

// GetOwnerContact возвращает контакты практика из справочника ядра.
// GET /api/v1/practitioners/{id}/contact. Отсутствие записи — nil, nil:
// контакты используются только для косметического обогащения ответов.
func (c *Client) GetOwnerContact(ctx context.Context, ownerID string) (*OwnerContact, error) {
	reqURL := fmt.Sprintf("%s/api/v1/practitioners/%s/contact", c.baseURL, ownerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса GetOwnerContact: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос контактов практика %s: %w", ownerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ядро вернуло статус %d на запрос контактов: %s", resp.StatusCode, string(body))
	}

	var contact OwnerContact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return nil, fmt.Errorf("декодирование контактов практика: %w", err)
	}
	return &contact, nil
}

// post выполняет POST с JSON-телом и декодирует CreatedEntity.
func (c *Client) post(ctx context.Context, path string, payload any) (*CreatedEntity, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация тела запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s к ядру: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ядро вернуло статус %d на %s: %s", resp.StatusCode, path, string(respBody))
	}

	var entity CreatedEntity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return nil, fmt.Errorf("декодирование ответа ядра на %s: %w", path, err)
	}
	return &entity, nil
}

// authorize добавляет заголовок Authorization, если задан tokenProvider.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenProvider == nil {
		return nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("получение токена для ядра: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
