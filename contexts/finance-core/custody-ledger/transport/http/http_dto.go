package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DepositRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

type TransferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type EntryDTO struct {
	EntryID     string `json:"entry_id"`
	Kind        string `json:"kind"`
	Reference   string `json:"reference"`
	FromAccount string `json:"from_account,omitempty"`
	ToAccount   string `json:"to_account"`
	Amount      int64  `json:"amount"`
	CreatedAt   string `json:"created_at"`
}

type EntryResponse struct {
	Status   string   `json:"status"`
	Replayed bool     `json:"replayed"`
	Data     EntryDTO `json:"data"`
}

type AccountResponse struct {
	Status string `json:"status"`
	Data   struct {
		AccountID string     `json:"account_id"`
		Balance   int64      `json:"balance"`
		UpdatedAt string     `json:"updated_at,omitempty"`
		Entries   []EntryDTO `json:"entries"`
	} `json:"data"`
}
