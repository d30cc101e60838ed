package models

// Student represents a learner; Grade holds the grade level as a numeric string such as "10".
type Student struct {
	ID       string `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"userId"`
	FullName string `db:"full_name" json:"fullName"`
	Grade    string `db:"grade" json:"grade"`
}

// StudentParentLink associates a student with a parent user account.
type StudentParentLink struct {
	StudentID    string `db:"student_id" json:"studentId"`
	ParentUserID string `db:"parent_user_id" json:"parentUserId"`
}
