package proctorRepository

const (
	queryCreateSession = `
		INSERT INTO proctoring_sessions (
			id, interview_id, user_id, status, start_time
		) VALUES (
			:id, :interview_id, :user_id, :status, :start_time
		)
	`

	queryGetSessionByID = `
		SELECT
			id, interview_id, user_id, status, start_time, end_time
		FROM proctoring_sessions
		WHERE id = :id
	`

	queryCompleteSession = `
		UPDATE proctoring_sessions
		SET status = :status, end_time = :end_time
		WHERE id = :id
	`

	queryCreateFlag = `
		INSERT INTO proctoring_flags (
			id, session_id, flag_type, confidence_score, source, details, created_at
		) VALUES (
			:id, :session_id, :flag_type, :confidence_score, :source, :details, :created_at
		)
	`

	queryGetFlagsBySessionID = `
		SELECT
			id, session_id, flag_type, confidence_score, source, details, created_at
		FROM proctoring_flags
		WHERE session_id = :session_id
		ORDER BY created_at ASC
	`
)
