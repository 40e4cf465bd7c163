package models

import "time"

// DateLayout is the wire format for loan dates.
const DateLayout = "2006-01-02"

// Loan binds a book to the user who borrowed it.
type Loan struct {
	ID           uint      `json:"id_emprestimo" gorm:"primaryKey"`
	LoanDate     string    `json:"data_emprestimo" gorm:"not null;index"`
	DueDate      string    `json:"data_devolucao" gorm:"not null;index"`
	ReturnedDate *string   `json:"data_devolvido" gorm:"index"` // nil while the book is out
	BookID       uint      `json:"livro_id" gorm:"not null;index:idx_loans_book_user"`
	UserID       uint      `json:"usuario_id" gorm:"not null;index:idx_loans_book_user"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Returned reports whether a return has been recorded for the loan.
func (l *Loan) Returned() bool {
	return l.ReturnedDate != nil && *l.ReturnedDate != ""
}
