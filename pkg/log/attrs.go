package log

import "log/slog"

func SubmissionID[T ~string](id T) slog.Attr {
	return slog.String("submission_id", string(id))
}

func Step[T ~int](n T) slog.Attr {
	return slog.Int("step", int(n))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Op(op string) slog.Attr {
	return slog.String("op", op)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
