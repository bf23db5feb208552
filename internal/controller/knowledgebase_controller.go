package controller

import (
	"fmt"
	"io"
	"mime/multipart"

	"ai-knowledgebase-be/internal/dto"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/serverutils"
	"ai-knowledgebase-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IKnowledgebaseController interface {
	RegisterRoutes(r fiber.Router, middleware ...fiber.Handler)
	UploadChunk(ctx *fiber.Ctx) error
	VerifyUpload(ctx *fiber.Ctx) error
	MergeChunks(ctx *fiber.Ctx) error
	UploadDocuments(ctx *fiber.Ctx) error
	ListCollections(ctx *fiber.Ctx) error
	DescribeCollection(ctx *fiber.Ctx) error
	RemoveDocument(ctx *fiber.Ctx) error
	Retrieve(ctx *fiber.Ctx) error
}

type knowledgebaseController struct {
	uploadService        service.IUploadService
	knowledgebaseService service.IKnowledgebaseService
}

func NewKnowledgebaseController(uploadService service.IUploadService, knowledgebaseService service.IKnowledgebaseService) IKnowledgebaseController {
	return &knowledgebaseController{
		uploadService:        uploadService,
		knowledgebaseService: knowledgebaseService,
	}
}

func (c *knowledgebaseController) RegisterRoutes(r fiber.Router, middleware ...fiber.Handler) {
	h := r.Group("/knowledgebase/v1")
	for _, m := range middleware {
		h.Use(m)
	}

	h.Post("chunks", c.UploadChunk)
	h.Get("chunks/verify", c.VerifyUpload)
	h.Post("chunks/merge", c.MergeChunks)
	h.Post("documents", c.UploadDocuments)

	h.Get("collections", c.ListCollections)
	h.Get("collections/:name", c.DescribeCollection)
	h.Delete("collections/:name/documents", c.RemoveDocument)
	h.Get("collections/:name/retrieve", c.Retrieve)
}

func (c *knowledgebaseController) UploadChunk(ctx *fiber.Ctx) error {
	var req dto.UploadChunkRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	// Older clients send fileHash/chunkHash.
	if req.Fingerprint == "" {
		req.Fingerprint = ctx.FormValue("fileHash")
	}
	if req.ChunkId == "" {
		req.ChunkId = ctx.FormValue("chunkHash")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	file, err := ctx.FormFile("chunk")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Chunk file is required"))
	}
	data, err := readFormFile(file)
	if err != nil {
		return err
	}

	res, err := c.uploadService.UploadChunk(ctx.UserContext(), &req, data)
	if err != nil {
		return err
	}

	if res.AlreadyExists {
		return ctx.JSON(serverutils.SuccessResponse("chunk already exists", res))
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse(fmt.Sprintf("chunk %s uploaded successfully", res.ChunkId), res))
}

func (c *knowledgebaseController) VerifyUpload(ctx *fiber.Ctx) error {
	fingerprint := ctx.Query("fingerprint", ctx.Query("fileHash"))
	if fingerprint == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "fingerprint is required"))
	}

	res, err := c.uploadService.VerifyUpload(ctx.UserContext(), fingerprint)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success verify upload", res))
}

func (c *knowledgebaseController) MergeChunks(ctx *fiber.Ctx) error {
	var req dto.MergeChunksRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.uploadService.MergeChunks(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("merge successfully and document is added to vector store", res))
}

func (c *knowledgebaseController) UploadDocuments(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Must upload at least one file"))
	}

	files := form.File["files"]
	if len(files) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Must upload at least one file"))
	}

	docs := make([]*entity.IngestableDocument, 0, len(files))
	for _, file := range files {
		data, err := readFormFile(file)
		if err != nil {
			return err
		}
		docs = append(docs, &entity.IngestableDocument{
			OriginalName: file.Filename,
			Content:      data,
			ContentType:  file.Header.Get("Content-Type"),
		})
	}

	collection := ctx.FormValue("collection", ctx.Query("collection"))
	res, err := c.uploadService.UploadDocuments(ctx.UserContext(), collection, docs)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Documents added to vector store", res))
}

func (c *knowledgebaseController) ListCollections(ctx *fiber.Ctx) error {
	res, err := c.knowledgebaseService.ListCollections(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all collections", res))
}

func (c *knowledgebaseController) DescribeCollection(ctx *fiber.Ctx) error {
	res, err := c.knowledgebaseService.DescribeCollection(ctx.UserContext(), ctx.Params("name"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success describe collection", res))
}

func (c *knowledgebaseController) RemoveDocument(ctx *fiber.Ctx) error {
	collection := ctx.Params("name", ctx.Query("colname"))
	filename := ctx.Query("filename", ctx.Query("docname"))

	res, err := c.knowledgebaseService.RemoveDocument(ctx.UserContext(), collection, filename)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success remove document", res))
}

func (c *knowledgebaseController) Retrieve(ctx *fiber.Ctx) error {
	res, err := c.knowledgebaseService.Retrieve(ctx.UserContext(), ctx.Params("name"), ctx.Query("q"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retrieve context", res))
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
