package client

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder - источник аудио на устройстве (микрофон).
type Recorder interface {
	// Start начинает запись.
	Start(ctx context.Context) error
	// Stop останавливает запись и отдает накопленный блоб.
	Stop() ([]byte, error)
}

// LocationSource отдает последнюю известную позицию устройства.
// При недоступной геолокации допустим сентинел (0,0).
type LocationSource interface {
	Current() (lat, lon float64)
}

// CaptureSession - одна запись аудио на время отсчета. Живет
// независимо от запроса создания: загрузка ключуется dispatchId и
// потому не зависит от порядка завершения создания и записи.
// Abort идемпотентен и детерминированно гасит и таймер записи, и
// саму запись.
type CaptureSession struct {
	recorder Recorder
	api      *APIClient
	logger   *logrus.Logger
	limit    time.Duration

	cancel context.CancelFunc
	once   sync.Once

	// dispatchID приходит асинхронно, когда сервер подтвердил создание.
	dispatchCh chan string

	done chan struct{}
}

func newCaptureSession(recorder Recorder, api *APIClient, logger *logrus.Logger, limit time.Duration) *CaptureSession {
	return &CaptureSession{
		recorder:   recorder,
		api:        api,
		logger:     logger,
		limit:      limit,
		dispatchCh: make(chan string, 1),
		done:       make(chan struct{}),
	}
}

// start запускает запись, ограниченную limit либо отменой.
func (s *CaptureSession) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)

		if err := s.recorder.Start(ctx); err != nil {
			s.logger.WithError(err).Error("Failed to start audio capture")
			return
		}

		select {
		case <-time.After(s.limit):
		case <-ctx.Done():
			// Отмена: запись глушится, загрузки не будет.
			if _, err := s.recorder.Stop(); err != nil {
				s.logger.WithError(err).Debug("Recorder stop after cancel")
			}
			return
		}

		blob, err := s.recorder.Stop()
		if err != nil {
			s.logger.WithError(err).Error("Failed to stop audio capture")
			return
		}

		// Ждем dispatchId от завершившегося создания; если создание
		// так и не подтвердилось, блоб некуда привязать.
		select {
		case dispatchID := <-s.dispatchCh:
			s.upload(dispatchID, blob)
		case <-ctx.Done():
		case <-time.After(s.limit):
			s.logger.Warn("No dispatch id for captured audio, dropping blob")
		}
	}()
}

func (s *CaptureSession) upload(dispatchID string, blob []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url, err := s.api.UploadAudio(ctx, dispatchID, blob)
	if err != nil {
		// Ошибка загрузки касается только загружающего.
		s.logger.WithError(err).WithField("dispatch_id", dispatchID).Error("Audio upload failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"dispatch_id": dispatchID,
		"audio_url":   url,
	}).Info("Audio uploaded")
}

// setDispatchID привязывает будущую загрузку к подтвержденному вызову.
func (s *CaptureSession) setDispatchID(dispatchID string) {
	select {
	case s.dispatchCh <- dispatchID:
	default:
	}
}

// abort останавливает запись; безопасен при повторных вызовах.
func (s *CaptureSession) abort() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Controller связывает детектор триггера, запись аудио и API:
// это устройство-сторона конвейера создания вызова.
type Controller struct {
	api      *APIClient
	socket   *Socket
	recorder Recorder
	location LocationSource
	logger   *logrus.Logger
	limit    time.Duration

	mu      sync.Mutex
	session *CaptureSession
}

func NewController(api *APIClient, socket *Socket, recorder Recorder, location LocationSource, logger *logrus.Logger, captureLimit time.Duration) *Controller {
	return &Controller{
		api:      api,
		socket:   socket,
		recorder: recorder,
		location: location,
		logger:   logger,
		limit:    captureLimit,
	}
}

// StartCapture - хук детектора на вход в Armed.
func (c *Controller) StartCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = newCaptureSession(c.recorder, c.api, c.logger, c.limit)
	c.session.start()
}

// AbortCapture - хук детектора на отмену; идемпотентен.
func (c *Controller) AbortCapture() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.abort()
	}
}

// Dispatch - хук детектора на истекший отсчет: создает вызов и
// привязывает к нему идущую запись. Запись к этому моменту уже идет,
// ее завершение не ждет ответа сервера.
func (c *Controller) Dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lat, lon := c.location.Current()
	result, err := c.api.CreateSOS(ctx, lat, lon)
	if err != nil {
		c.logger.WithError(err).Error("Failed to create SOS")
		c.AbortCapture()
		return
	}

	c.logger.WithField("dispatch_id", result.DispatchID).Info("SOS created")

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.setDispatchID(result.DispatchID)
	}

	// Живая позиция устройства уходит в комнату вызова.
	if c.socket != nil {
		if err := c.socket.SendLocation(result.DispatchID, lat, lon); err != nil {
			c.logger.WithError(err).Debug("Failed to push live location")
		}
	}
}
